package report

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// Summary describes one beat or bar extraction.
type Summary struct {
	RunID        string      `json:"run_id,omitempty"`
	Piece        string      `json:"piece"`
	Kind         string      `json:"kind"`
	Source       string      `json:"source"`
	Outcome      string      `json:"outcome,omitempty"`
	Attempts     int         `json:"attempts"`
	Atoms        int         `json:"atoms"`
	Ignored      int         `json:"ignored"`
	Rows         int         `json:"rows"`
	Interpolated int         `json:"interpolated"`
	Undefined    int         `json:"undefined"`
	Tempo        *TempoStats `json:"tempo,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// TempoStats summarises a tempo curve in beats per minute.
type TempoStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// CountRows fills the row counters of s.
func (s *Summary) CountRows(rows []models.BeatRow) {
	s.Rows = len(rows)
	s.Interpolated, s.Undefined = 0, 0
	for _, r := range rows {
		if r.Interpolated {
			s.Interpolated++
		}
		if !r.Defined() {
			s.Undefined++
		}
	}
}

// TempoSummary returns statistics over the finite tempo values, or nil when
// there are none.
func TempoSummary(points []models.TempoPoint) *TempoStats {
	var tempi []float64
	for _, p := range points {
		if !math.IsNaN(p.Tempo) && !math.IsInf(p.Tempo, 0) {
			tempi = append(tempi, p.Tempo)
		}
	}
	if len(tempi) == 0 {
		return nil
	}
	return &TempoStats{
		Mean: stat.Mean(tempi, nil),
		Min:  floats.Min(tempi),
		Max:  floats.Max(tempi),
	}
}
