package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/himanishpuri/PerfGrid/internal/report"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/alignment"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/beatgrid"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorParse
	ErrorInsufficientData
	ErrorProcessing
)

// beatsOutput is what the browser gets back from computeBeats.
type beatsOutput struct {
	CSV             string
	QuarterLength   int
	AnacrusisOffset int
	Attempts        int
	Outcome         string
	Ignored         int
}

// computeBeats builds a constant beat grid for a match file and estimates
// its beat times. A negative quarter or offset is guessed.
func computeBeats(matchText string, quarter, offset int, maxTries int) (*beatsOutput, int, error) {
	atoms, err := alignment.ParseMatch(strings.NewReader(matchText))
	if err != nil {
		return nil, ErrorParse, err
	}

	opts := beatgrid.DefaultOptions()
	if maxTries > 0 {
		opts.MaxTries = maxTries
	}
	if quarter > 0 {
		opts.QuarterLength = &quarter
	}
	if offset >= 0 {
		opts.AnacrusisOffset = &offset
	}

	grid, params, err := beatgrid.MakeReference(atoms, opts)
	if err != nil {
		return nil, codeFor(err), err
	}
	res, err := beatgrid.GetBeats(atoms, grid, opts)
	if err != nil {
		return nil, codeFor(err), err
	}

	var buf bytes.Buffer
	if err := report.WriteBeats(&buf, res.Rows); err != nil {
		return nil, ErrorProcessing, err
	}
	return &beatsOutput{
		CSV:             buf.String(),
		QuarterLength:   params.QuarterLength,
		AnacrusisOffset: params.AnacrusisOffset,
		Attempts:        res.Attempts,
		Outcome:         string(res.Outcome),
		Ignored:         len(res.Ignored),
	}, ErrorNone, nil
}

// computeTempo turns a beats CSV into a tempo CSV.
func computeTempo(beatsCSV string) (string, int, error) {
	times, err := report.ReadBeatTimes(strings.NewReader(beatsCSV))
	if err != nil {
		return "", ErrorParse, err
	}
	if len(times) < 2 {
		return "", ErrorInsufficientData, fmt.Errorf("need at least 2 beats, got %d", len(times))
	}

	var buf bytes.Buffer
	if err := report.WriteTempo(&buf, beatgrid.Tempo(times)); err != nil {
		return "", ErrorProcessing, err
	}
	return buf.String(), ErrorNone, nil
}

func codeFor(err error) int {
	if beatgrid.IsInputError(err) {
		return ErrorInsufficientData
	}
	return ErrorProcessing
}
