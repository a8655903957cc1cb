// Package alignment reads score-to-performance alignments and drives the
// external aligner that produces them.
package alignment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// Match file columns (tab separated).
const (
	colTime    = 1
	colTatum   = 8
	colNoteID  = 9
	minColumns = 4 // Shorter rows are metadata
)

var ErrTruncatedRow = errors.New("truncated match row")

// ParseError locates a malformed match file entry.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	path := e.Path
	if path == "" {
		path = "<match>"
	}
	return fmt.Sprintf("%s:%d: column %d: %v", path, e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadMatchFile parses the aligner's match file at path.
func ReadMatchFile(path string) ([]models.AlignmentAtom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open match file: %w", err)
	}
	defer f.Close()

	atoms, err := ParseMatch(f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return atoms, nil
}

// ParseMatch reads alignment atoms from a match file. Metadata rows, notes
// with no score position and extra (unmatched) performance notes are skipped.
// Any other malformed row fails the whole read.
func ParseMatch(r io.Reader) ([]models.AlignmentAtom, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var atoms []models.AlignmentAtom
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			perr := &ParseError{Err: err}
			var cerr *csv.ParseError
			if errors.As(err, &cerr) {
				perr.Line, perr.Column = cerr.Line, cerr.Column
			}
			return nil, perr
		}
		line, _ := cr.FieldPos(0)
		if len(row) < minColumns {
			continue
		}
		if len(row) <= colTatum {
			return nil, &ParseError{Line: line, Column: len(row), Err: ErrTruncatedRow}
		}

		tatumField := strings.TrimSpace(row[colTatum])
		if tatumField == "-1" {
			continue
		}
		if len(row) <= colNoteID {
			return nil, &ParseError{Line: line, Column: len(row), Err: ErrTruncatedRow}
		}
		if strings.TrimSpace(row[colNoteID]) == "*" {
			continue
		}

		tatum, err := strconv.Atoi(tatumField)
		if err != nil {
			return nil, &ParseError{Line: line, Column: colTatum, Err: err}
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(row[colTime]), 64)
		if err != nil {
			return nil, &ParseError{Line: line, Column: colTime, Err: err}
		}
		atoms = append(atoms, models.AlignmentAtom{Tatum: tatum, Time: t})
	}
	return atoms, nil
}
