package main

import (
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/PerfGrid/internal/report"
	"github.com/himanishpuri/PerfGrid/pkg/models"
)

const (
	// MaxMatchFileSize bounds uploaded match files.
	MaxMatchFileSize = 32 << 20

	// MaxTempoBeats bounds the beat times accepted by POST /api/tempo.
	MaxTempoBeats = 100000
)

// TempoRequest is the request body for POST /api/tempo
type TempoRequest struct {
	Times []float64 `json:"times"`
}

func (r *TempoRequest) Validate() error {
	if len(r.Times) < 2 {
		return fmt.Errorf("at least 2 beat times are required")
	}
	if len(r.Times) > MaxTempoBeats {
		return fmt.Errorf("too many beat times: %d (maximum: %d)", len(r.Times), MaxTempoBeats)
	}
	return nil
}

// TempoResponse is the response for POST /api/tempo
type TempoResponse struct {
	Points []TempoPointDTO    `json:"points"`
	Stats  *report.TempoStats `json:"stats,omitempty"`
}

type TempoPointDTO struct {
	Count    int      `json:"count"`
	Time     *float64 `json:"time"`
	Midpoint *float64 `json:"midpoint"`
	Tempo    *float64 `json:"tempo"`
}

// BeatDTO is one beat row; Time is null outside the aligned range.
type BeatDTO struct {
	Count        int      `json:"count"`
	Time         *float64 `json:"time"`
	Interpolated bool     `json:"interpolated"`
}

type AtomDTO struct {
	Tatum int     `json:"tatum"`
	Time  float64 `json:"time"`
}

// BeatsResponse is the response for POST /api/beats
type BeatsResponse struct {
	RunID           string          `json:"run_id,omitempty"`
	Piece           string          `json:"piece"`
	Kind            string          `json:"kind"`
	Outcome         string          `json:"outcome"`
	Attempts        int             `json:"attempts"`
	QuarterLength   int             `json:"quarter_length,omitempty"`
	AnacrusisOffset *int            `json:"anacrusis_offset,omitempty"`
	Beats           []BeatDTO       `json:"beats"`
	Ignored         []AtomDTO       `json:"ignored"`
	Tempo           []TempoPointDTO `json:"tempo"`
	Summary         report.Summary  `json:"summary"`
}

// RunDTO represents a stored run in API responses
type RunDTO struct {
	ID           string    `json:"id"`
	Piece        string    `json:"piece"`
	Kind         string    `json:"kind"`
	Source       string    `json:"source"`
	Outcome      string    `json:"outcome"`
	Attempts     int       `json:"attempts"`
	AtomCount    int       `json:"atom_count"`
	IgnoredCount int       `json:"ignored_count"`
	RowCount     int       `json:"row_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunDetailResponse is the response for GET /api/runs/{id}
type RunDetailResponse struct {
	RunDTO
	Beats   []BeatDTO `json:"beats"`
	Ignored []AtomDTO `json:"ignored"`
}

// ListRunsResponse is the response for GET /api/runs
type ListRunsResponse struct {
	Runs  []RunDTO `json:"runs"`
	Count int      `json:"count"`
}

// DeleteRunResponse is the response for DELETE /api/runs/{id}
type DeleteRunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status        string  `json:"status"`
	DatabasePath  string  `json:"database_path"`
	RunCount      int64   `json:"run_count"`
	BeatRowCount  int64   `json:"beat_row_count"`
	MaxTries      int     `json:"max_tries"`
	OutlierFactor float64 `json:"outlier_factor"`
	Uptime        string  `json:"uptime"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// finite returns nil for NaN and infinities, which JSON cannot carry.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func toRunDTO(run *models.Run) RunDTO {
	return RunDTO{
		ID:           run.ID,
		Piece:        run.PieceID,
		Kind:         string(run.Kind),
		Source:       string(run.Source),
		Outcome:      run.Outcome,
		Attempts:     run.Attempts,
		AtomCount:    run.AtomCount,
		IgnoredCount: run.IgnoredCount,
		RowCount:     run.RowCount,
		CreatedAt:    run.CreatedAt,
	}
}

func toBeatDTOs(rows []models.BeatRow) []BeatDTO {
	dtos := make([]BeatDTO, len(rows))
	for i, row := range rows {
		dtos[i] = BeatDTO{Count: i, Time: finite(row.Time), Interpolated: row.Interpolated}
	}
	return dtos
}

func toAtomDTOs(atoms []models.AlignmentAtom) []AtomDTO {
	dtos := make([]AtomDTO, len(atoms))
	for i, a := range atoms {
		dtos[i] = AtomDTO{Tatum: a.Tatum, Time: a.Time}
	}
	return dtos
}

func toTempoDTOs(points []models.TempoPoint) []TempoPointDTO {
	dtos := make([]TempoPointDTO, len(points))
	for i, p := range points {
		dtos[i] = TempoPointDTO{Count: p.Count, Time: finite(p.Time), Midpoint: finite(p.Midpoint), Tempo: finite(p.Tempo)}
	}
	return dtos
}
