package beatgrid

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// MinSplinePoints is the number of distinct ticks a cubic fit needs.
const MinSplinePoints = 4

// Interpolate fits a not-a-knot cubic spline through (ticks, times) and
// evaluates it at every grid tick. ticks must be ascending and distinct, as
// returned by Dedup. Grid ticks outside [ticks[0], ticks[n-1]] get a NaN time:
// the spline is never extrapolated.
func Interpolate(ticks []int, times []float64, grid []int) ([]models.BeatRow, error) {
	if len(ticks) != len(times) {
		return nil, fmt.Errorf("interpolate: %d ticks but %d times", len(ticks), len(times))
	}
	if len(ticks) < MinSplinePoints {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(ticks), MinSplinePoints)
	}

	xs := make([]float64, len(ticks))
	for i, t := range ticks {
		if i > 0 && t <= ticks[i-1] {
			return nil, fmt.Errorf("interpolate: ticks not strictly increasing at index %d", i)
		}
		xs[i] = float64(t)
	}

	var spline interp.NotAKnotCubic
	if err := spline.Fit(xs, times); err != nil {
		return nil, fmt.Errorf("fitting spline: %w", err)
	}

	lo, hi := ticks[0], ticks[len(ticks)-1]
	rows := make([]models.BeatRow, len(grid))
	for i, g := range grid {
		j := sort.SearchInts(ticks, g)
		rows[i].Interpolated = j == len(ticks) || ticks[j] != g
		if g < lo || g > hi {
			rows[i].Time = math.NaN()
			continue
		}
		rows[i].Time = spline.Predict(float64(g))
	}
	return rows, nil
}
