package perfgrid

import (
	"context"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

type Service interface {
	// ExtractGrid estimates the performance time of every reference grid tick.
	ExtractGrid(ctx context.Context, req GridRequest) (*GridResult, error)
	Align(ctx context.Context, refMIDI, perfMIDI string) ([]models.AlignmentAtom, error)
	ProcessPiece(ctx context.Context, piece models.Piece) (*PieceReport, error)
	ProcessBatch(ctx context.Context, pieces []models.Piece) []PieceReport
	GetRun(id string) (*models.Run, error)
	ListRuns(pieceID string) ([]models.Run, error)
	GetBeatRows(id string) ([]models.BeatRow, error)
	GetIgnored(id string) ([]models.AlignmentAtom, error)
	DeleteRun(id string) error
	Stats() (*Stats, error)
	Close() error
}

type Storage interface {
	SaveRun(run models.Run, rows []models.BeatRow, ignored []models.AlignmentAtom) (string, error)
	GetRun(id string) (*models.Run, error)
	ListRuns(pieceID string) ([]models.Run, error)
	GetBeatRows(id string) ([]models.BeatRow, error)
	GetIgnored(id string) ([]models.AlignmentAtom, error)
	DeleteRun(id string) error
	Counts() (runs, rows int64, err error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
