// Package report writes analysis results as CSV and JSON files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

var ErrNoTimeColumn = errors.New("no time or beats column")

// WriteFile writes path through a temporary file in the same directory.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return utils.MoveFile(tmp, path)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func writeCSV(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBeats writes one row per grid tick, counting from 0. Undefined times
// are left empty.
func WriteBeats(w io.Writer, rows []models.BeatRow) error {
	return writeCSV(w, []string{"count", "time", "interpolated"}, len(rows), func(i int) []string {
		return []string{strconv.Itoa(i), formatFloat(rows[i].Time), strconv.FormatBool(rows[i].Interpolated)}
	})
}

func WriteTempo(w io.Writer, points []models.TempoPoint) error {
	return writeCSV(w, []string{"count", "time", "midpoint", "tempo"}, len(points), func(i int) []string {
		p := points[i]
		return []string{strconv.Itoa(p.Count), formatFloat(p.Time), formatFloat(p.Midpoint), formatFloat(p.Tempo)}
	})
}

func WriteSustain(w io.Writer, events []models.SustainEvent) error {
	return writeCSV(w, []string{"time", "sustain"}, len(events), func(i int) []string {
		return []string{formatFloat(events[i].Time), strconv.Itoa(events[i].Value)}
	})
}

func WriteVelocity(w io.Writer, onsets []models.OnsetVelocity) error {
	return writeCSV(w, []string{"time", "pitch", "velocity"}, len(onsets), func(i int) []string {
		o := onsets[i]
		return []string{formatFloat(o.Time), strconv.Itoa(o.Pitch), strconv.Itoa(o.Velocity)}
	})
}

func WriteNoteTempo(w io.Writer, points []models.NoteTempo) error {
	return writeCSV(w, []string{"tatum", "time", "tempo"}, len(points), func(i int) []string {
		p := points[i]
		return []string{strconv.Itoa(p.Tatum), formatFloat(p.Time), formatFloat(p.Tempo)}
	})
}

// ReadBeatTimes reads the time column of a beats or bars CSV. Older manual
// annotations name the column "beats". Empty cells read as NaN.
func ReadBeatTimes(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := -1
	for _, name := range []string{"time", "beats"} {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				col = i
				break
			}
		}
		if col >= 0 {
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w in header %v", ErrNoTimeColumn, header)
	}

	var times []float64
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			times = append(times, math.NaN())
			continue
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		times = append(times, t)
	}
	return times, nil
}

// ReadBeatTimesFile is ReadBeatTimes on a file.
func ReadBeatTimesFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	times, err := ReadBeatTimes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return times, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
