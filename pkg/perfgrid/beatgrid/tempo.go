package beatgrid

import (
	"slices"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// Tempo derives the tempo between consecutive beats. The first beat has no
// tempo, so the result has one point fewer than times; point i describes the
// interval ending at beat i+1.
func Tempo(times []float64) []models.TempoPoint {
	if len(times) < 2 {
		return nil
	}
	points := make([]models.TempoPoint, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		points = append(points, models.TempoPoint{
			Count:    i,
			Time:     times[i],
			Midpoint: (times[i-1] + times[i]) / 2,
			Tempo:    60 / (times[i] - times[i-1]),
		})
	}
	return points
}

// NoteTempo computes the instantaneous tempo at each aligned note, walking the
// alignment forwards or backwards in the order the aligner reported it. Notes
// sharing a tick are merged onto the latest one seen and notes going back
// against the walking direction (alignment crossings) are skipped.
func NoteTempo(atoms []models.AlignmentAtom, forward bool) []models.NoteTempo {
	if len(atoms) < 2 {
		return nil
	}
	end := atoms[len(atoms)-1]
	if end.Tatum == 0 {
		return nil
	}
	secondsPerTick := end.Time / float64(end.Tatum)

	start := atoms[0]
	walk := atoms[1:]
	behind := func(a, b int) bool { return a < b }
	if !forward {
		start = end
		walk = slices.Clone(walk)
		slices.Reverse(walk)
		behind = func(a, b int) bool { return a > b }
	}

	lastTatum, lastTime := start.Tatum, start.Time
	curTatum, curTime := lastTatum, lastTime

	var out []models.NoteTempo
	for _, next := range walk {
		switch {
		case behind(next.Tatum, curTatum):
			continue
		case next.Tatum == curTatum:
			curTime = next.Time
			if curTatum == lastTatum {
				continue
			}
		default:
			lastTatum, lastTime = curTatum, curTime
			curTatum, curTime = next.Tatum, next.Time
		}
		out = append(out, models.NoteTempo{
			Tatum: next.Tatum,
			Time:  next.Time,
			Tempo: float64(next.Tatum-lastTatum) / (next.Time - lastTime) * secondsPerTick,
		})
	}
	return out
}
