package models

import "time"

// GridKind tells whether a run estimated beats or bars.
type GridKind string

const (
	KindBeats GridKind = "beats"
	KindBars  GridKind = "bars"
)

// RunSource tells where a run's rows came from.
type RunSource string

const (
	SourceAligned RunSource = "aligned"
	SourceManual  RunSource = "manual"
)

// Run is a stored beat or bar extraction.
type Run struct {
	ID           string // UUID
	PieceID      string
	Kind         GridKind
	Source       RunSource
	Attempts     int
	Outcome      string
	AtomCount    int
	IgnoredCount int
	RowCount     int
	CreatedAt    time.Time
}
