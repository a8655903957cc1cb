//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

const DefaultDBFile = "perfgrid.sqlite3"

// DBPathEnv overrides DefaultDBFile for NewDBClient.
const DBPathEnv = "PERFGRID_DB_PATH"

const errDBClientNil = "db client is nil"

var ErrNotFound = errors.New("run not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Run struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	PieceID      string `gorm:"index:idx_run_piece"`
	Kind         string `gorm:"type:varchar(8)"`
	Source       string `gorm:"type:varchar(8)"`
	Attempts     int
	Outcome      string
	AtomCount    int
	IgnoredCount int
	RowCount     int
	CreatedAt    time.Time `gorm:"index:idx_run_created"`
}

// BeatRow is one grid row; an undefined time is stored as NULL.
type BeatRow struct {
	ID           uint     `gorm:"primaryKey;autoIncrement"`
	RunID        string   `gorm:"type:varchar(36);index:idx_row_run"`
	Position     int      `gorm:"index:idx_row_run"`
	Time         *float64 `json:"time"`
	Interpolated bool     `json:"interpolated"`
}

type IgnoredAtom struct {
	ID    uint   `gorm:"primaryKey;autoIncrement"`
	RunID string `gorm:"type:varchar(36);index:idx_ignored_run"`
	Tatum int
	Time  float64
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv(DBPathEnv)
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// SQLite serialises writers; batch workers share one connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}, &BeatRow{}, &IgnoredAtom{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

// SaveRun stores a run with its rows and ignored atoms in one transaction and
// returns the run ID. A new UUID is assigned when run.ID is empty.
func (c *DBClient) SaveRun(run models.Run, rows []models.BeatRow, ignored []models.AlignmentAtom) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	if run.ID == "" {
		run.ID = utils.GenerateUUID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.RowCount = len(rows)
	run.IgnoredCount = len(ignored)

	dbRun := Run{
		ID:           run.ID,
		PieceID:      run.PieceID,
		Kind:         string(run.Kind),
		Source:       string(run.Source),
		Attempts:     run.Attempts,
		Outcome:      run.Outcome,
		AtomCount:    run.AtomCount,
		IgnoredCount: run.IgnoredCount,
		RowCount:     run.RowCount,
		CreatedAt:    run.CreatedAt,
	}

	dbRows := make([]BeatRow, len(rows))
	for i, r := range rows {
		dbRows[i] = BeatRow{RunID: run.ID, Position: i, Interpolated: r.Interpolated}
		if !math.IsNaN(r.Time) {
			t := r.Time
			dbRows[i].Time = &t
		}
	}
	dbIgnored := make([]IgnoredAtom, len(ignored))
	for i, a := range ignored {
		dbIgnored[i] = IgnoredAtom{RunID: run.ID, Tatum: a.Tatum, Time: a.Time}
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dbRun).Error; err != nil {
			return fmt.Errorf("creating run: %w", err)
		}
		if len(dbRows) > 0 {
			if err := tx.CreateInBatches(dbRows, 500).Error; err != nil {
				return fmt.Errorf("batch insert beat rows: %w", err)
			}
		}
		if len(dbIgnored) > 0 {
			if err := tx.CreateInBatches(dbIgnored, 500).Error; err != nil {
				return fmt.Errorf("batch insert ignored atoms: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func toModel(r Run) models.Run {
	return models.Run{
		ID:           r.ID,
		PieceID:      r.PieceID,
		Kind:         models.GridKind(r.Kind),
		Source:       models.RunSource(r.Source),
		Attempts:     r.Attempts,
		Outcome:      r.Outcome,
		AtomCount:    r.AtomCount,
		IgnoredCount: r.IgnoredCount,
		RowCount:     r.RowCount,
		CreatedAt:    r.CreatedAt,
	}
}

func (c *DBClient) GetRun(id string) (*models.Run, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var r Run
	if err := c.DB.Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	run := toModel(r)
	return &run, nil
}

// ListRuns returns runs newest first, optionally only those of one piece.
func (c *DBClient) ListRuns(pieceID string) ([]models.Run, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	q := c.DB.Order("created_at desc")
	if pieceID != "" {
		q = q.Where("piece_id = ?", pieceID)
	}
	var rows []Run
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	runs := make([]models.Run, len(rows))
	for i, r := range rows {
		runs[i] = toModel(r)
	}
	return runs, nil
}

func (c *DBClient) GetBeatRows(runID string) ([]models.BeatRow, error) {
	if _, err := c.GetRun(runID); err != nil {
		return nil, err
	}
	var rows []BeatRow
	if err := c.DB.Where("run_id = ?", runID).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying beat rows: %w", err)
	}
	out := make([]models.BeatRow, len(rows))
	for i, r := range rows {
		out[i] = models.BeatRow{Time: math.NaN(), Interpolated: r.Interpolated}
		if r.Time != nil {
			out[i].Time = *r.Time
		}
	}
	return out, nil
}

func (c *DBClient) GetIgnored(runID string) ([]models.AlignmentAtom, error) {
	if _, err := c.GetRun(runID); err != nil {
		return nil, err
	}
	var rows []IgnoredAtom
	if err := c.DB.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying ignored atoms: %w", err)
	}
	out := make([]models.AlignmentAtom, len(rows))
	for i, r := range rows {
		out[i] = models.AlignmentAtom{Tatum: r.Tatum, Time: r.Time}
	}
	return out, nil
}

// DeleteRun removes a run and everything stored with it.
func (c *DBClient) DeleteRun(runID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", runID).Delete(&Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err := tx.Where("run_id = ?", runID).Delete(&BeatRow{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id = ?", runID).Delete(&IgnoredAtom{}).Error
	})
}

// Counts returns the number of stored runs and beat rows.
func (c *DBClient) Counts() (runs, rows int64, err error) {
	if err := c.ready(); err != nil {
		return 0, 0, err
	}
	if err := c.DB.Model(&Run{}).Count(&runs).Error; err != nil {
		return 0, 0, err
	}
	if err := c.DB.Model(&BeatRow{}).Count(&rows).Error; err != nil {
		return 0, 0, err
	}
	return runs, rows, nil
}
