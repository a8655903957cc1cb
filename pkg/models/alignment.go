package models

import (
	"fmt"
	"math"
)

// AlignmentAtom is one score/performance correspondence reported by the
// aligner: a note at Tatum in the score was played at Time in the performance.
type AlignmentAtom struct {
	Tatum int     // Score position in ticks
	Time  float64 // Performance time in seconds
}

func (a AlignmentAtom) String() string {
	return fmt.Sprintf("AlignmentAtom(tatum=%d, time=%g)", a.Tatum, a.Time)
}

// BeatRow is the estimated performance time of one reference grid tick.
// Time is NaN when the tick lies outside the aligned range.
type BeatRow struct {
	Time         float64
	Interpolated bool // No atom sat exactly on the grid tick
}

// Defined reports whether the row carries a time.
func (b BeatRow) Defined() bool {
	return !math.IsNaN(b.Time)
}

// TempoPoint is the local tempo between beat Count-1 and beat Count.
type TempoPoint struct {
	Count    int
	Time     float64 // Time of beat Count
	Midpoint float64 // Halfway between the two beats
	Tempo    float64 // Beats per minute
}

// NoteTempo is the instantaneous tempo at an aligned note, relative to the
// average tatum duration of the whole performance (1.0 = average).
type NoteTempo struct {
	Tatum int
	Time  float64
	Tempo float64
}
