package perfgrid

import (
	"errors"

	"github.com/himanishpuri/PerfGrid/internal/report"
	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/beatgrid"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/storage"
)

var (
	// ErrNotFound is returned for unknown run IDs.
	ErrNotFound = storage.ErrNotFound

	// ErrNoStorage is returned by run queries when persistence is off.
	ErrNoStorage = errors.New("run storage is disabled")

	// ErrMissingInput means a piece lacks the files an output needs.
	ErrMissingInput = errors.New("missing input")
)

// GridRequest describes one beat or bar extraction.
type GridRequest struct {
	PieceID string
	Kind    models.GridKind
	Atoms   []models.AlignmentAtom

	// Grid is the reference grid in score ticks. When nil, a constant beat
	// grid is built from QuarterLength and AnacrusisOffset, guessed or
	// prompted for as beatgrid.MakeReference does.
	Grid            []int
	QuarterLength   *int
	AnacrusisOffset *int
	Guess           bool
	Prompt          beatgrid.PromptFunc
}

// GridResult is the outcome of an extraction.
type GridResult struct {
	RunID   string // Empty when not persisted
	Grid    []int
	Params  *beatgrid.BeatParams // Set when the grid was built from beat parameters
	Result  *beatgrid.Result
	Tempo   []models.TempoPoint
	Summary report.Summary
}

// PieceReport lists what ProcessPiece produced for one piece.
type PieceReport struct {
	PieceID string
	Outputs []string // Files written
	Skipped []string // Outputs not produced, with the reason
	Runs    []string // Stored run IDs
	Beats   *beatgrid.Result
	Bars    *beatgrid.Result
	Err     error
}

// Stats describes the run store.
type Stats struct {
	DBPath string
	Runs   int64
	Rows   int64
}
