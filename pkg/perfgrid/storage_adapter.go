package perfgrid

import (
	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveRun(run models.Run, rows []models.BeatRow, ignored []models.AlignmentAtom) (string, error) {
	return s.db.SaveRun(run, rows, ignored)
}

func (s *storageAdapter) GetRun(id string) (*models.Run, error) {
	return s.db.GetRun(id)
}

func (s *storageAdapter) ListRuns(pieceID string) ([]models.Run, error) {
	return s.db.ListRuns(pieceID)
}

func (s *storageAdapter) GetBeatRows(id string) ([]models.BeatRow, error) {
	return s.db.GetBeatRows(id)
}

func (s *storageAdapter) GetIgnored(id string) ([]models.AlignmentAtom, error) {
	return s.db.GetIgnored(id)
}

func (s *storageAdapter) DeleteRun(id string) error {
	return s.db.DeleteRun(id)
}

func (s *storageAdapter) Counts() (int64, int64, error) {
	return s.db.Counts()
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}
