package beatgrid

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func TestInterpolateReproducesLinearTiming(t *testing.T) {
	ticks := []int{100, 200, 300, 400}
	times := []float64{0.1, 0.2, 0.3, 0.4}
	grid := []int{0, 100, 250, 400, 500}

	rows, err := Interpolate(ticks, times, grid)
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	if len(rows) != len(grid) {
		t.Fatalf("expected %d rows, got %d", len(grid), len(rows))
	}

	if !math.IsNaN(rows[0].Time) || !math.IsNaN(rows[4].Time) {
		t.Errorf("grid ticks outside the observed range must be NaN, got %v and %v", rows[0].Time, rows[4].Time)
	}
	if math.Abs(rows[1].Time-0.1) > eps || math.Abs(rows[2].Time-0.25) > eps || math.Abs(rows[3].Time-0.4) > eps {
		t.Errorf("unexpected interpolated times %v", rows)
	}

	wantInterpolated := []bool{true, false, true, false, true}
	for i, row := range rows {
		if row.Interpolated != wantInterpolated[i] {
			t.Errorf("row %d: interpolated=%v, expected %v", i, row.Interpolated, wantInterpolated[i])
		}
	}
}

func TestInterpolateNeedsFourTicks(t *testing.T) {
	_, err := Interpolate([]int{0, 1, 2}, []float64{0, 1, 2}, []int{0, 1})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestInterpolateRejectsUnsortedTicks(t *testing.T) {
	_, err := Interpolate([]int{0, 2, 1, 3}, []float64{0, 1, 2, 3}, []int{0})
	if err == nil {
		t.Error("expected error for unsorted ticks")
	}
}

func TestInterpolateMonotonicOnSmoothPerformance(t *testing.T) {
	var ticks []int
	var times []float64
	for tick := 0; tick <= 12000; tick += 120 {
		ticks = append(ticks, tick)
		times = append(times, float64(tick)/1000+0.05*math.Sin(float64(tick)/700))
	}
	grid, err := Arange(0, 12000, 500)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := Interpolate(ticks, times, grid)
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	for i := 1; i < len(rows); i++ {
		if math.IsNaN(rows[i].Time) || rows[i].Time <= rows[i-1].Time {
			t.Fatalf("times not increasing at %d: %v after %v", i, rows[i].Time, rows[i-1].Time)
		}
	}
}
