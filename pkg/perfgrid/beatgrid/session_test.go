package beatgrid

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// crossedAtoms has the 1440 and 1920 notes inverted in time.
func crossedAtoms() []models.AlignmentAtom {
	return atomsOf(0, 0.0, 480, 0.52, 960, 0.98, 1440, 2.50, 1920, 1.95)
}

var crossedGrid = []int{0, 480, 960, 1440, 1920}

func TestSessionCorrectsCrossing(t *testing.T) {
	log := &recordingLogger{}
	opts := DefaultOptions()
	opts.Logger = log

	res, err := GetBeats(crossedAtoms(), crossedGrid, opts)
	if err != nil {
		t.Fatalf("GetBeats failed: %v", err)
	}

	if !res.Converged() {
		t.Fatalf("expected convergence, got %s with %v", res.Outcome, res.Remaining)
	}
	if res.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", res.Attempts)
	}
	if !reflect.DeepEqual(res.Ignored, atomsOf(1440, 2.50)) {
		t.Errorf("unexpected ignored atoms %v", res.Ignored)
	}

	times := res.Times()
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			t.Errorf("times not increasing at %d: %v", i, times)
		}
	}
	// The cubic through the remaining four atoms.
	if math.Abs(times[3]-1.4375) > 1e-6 {
		t.Errorf("expected 1.4375 at tick 1440, got %v", times[3])
	}

	for i, row := range res.Rows {
		want := i == 3
		if row.Interpolated != want {
			t.Errorf("row %d: interpolated=%v, expected %v", i, row.Interpolated, want)
		}
	}
	if log.count("WARN") != 0 {
		t.Errorf("unexpected warnings: %v", log.lines)
	}
}

func TestSessionSteps(t *testing.T) {
	s, err := NewSession(crossedAtoms(), crossedGrid, DefaultOptions())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	want := []State{StateDetect, StateCorrect, StateInterpolate, StateDetect, StateDone}
	var got []State
	for !s.State().Terminal() {
		st, err := s.Step()
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		got = append(got, st)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected states %v, got %v", want, got)
	}
	if s.Attempts() != 2 {
		t.Errorf("expected 2 attempts, got %d", s.Attempts())
	}
}

func TestSessionSinglePassWhenClean(t *testing.T) {
	atoms := atomsOf(0, 0, 500, 0.5, 1000, 1.0, 1500, 1.5, 2000, 2.0)

	res, err := GetBeats(atoms, []int{0, 500, 1000, 1500, 2000}, DefaultOptions())
	if err != nil {
		t.Fatalf("GetBeats failed: %v", err)
	}
	if res.Attempts != 1 || !res.Converged() {
		t.Errorf("expected one converged attempt, got %d/%s", res.Attempts, res.Outcome)
	}
	if len(res.Ignored) != 0 {
		t.Errorf("nothing should be ignored, got %v", res.Ignored)
	}
}

func TestSessionGivesUpAfterMaxTries(t *testing.T) {
	log := &recordingLogger{}
	opts := Options{MaxTries: 1, Logger: log}

	res, err := GetBeats(crossedAtoms(), crossedGrid, opts)
	if err != nil {
		t.Fatalf("GetBeats failed: %v", err)
	}

	if res.Outcome != OutcomeGaveUp {
		t.Fatalf("expected to give up, got %s", res.Outcome)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
	if !reflect.DeepEqual(res.Remaining, []Anomaly{{3, 4}}) {
		t.Errorf("unexpected remaining anomalies %v", res.Remaining)
	}
	if len(res.Ignored) != 0 {
		t.Errorf("no correction should be applied after the last try, got %v", res.Ignored)
	}
	if math.Abs(res.Rows[3].Time-2.50) > 1e-9 {
		t.Errorf("rows should be the last interpolation, got %v", res.Rows)
	}
	if log.count("WARN") != 1 {
		t.Errorf("expected one warning, got %v", log.lines)
	}
}

func TestSessionGivesUpWhenCorrectionStarves(t *testing.T) {
	atoms := atomsOf(0, 0, 480, 0.5, 960, 1.0, 1440, 0.6)

	res, err := GetBeats(atoms, []int{0, 480, 960, 1440}, DefaultOptions())
	if err != nil {
		t.Fatalf("GetBeats failed: %v", err)
	}
	if res.Outcome != OutcomeGaveUp || res.Attempts != 1 {
		t.Errorf("expected give-up after 1 attempt, got %s/%d", res.Outcome, res.Attempts)
	}
	if len(res.Rows) != 4 {
		t.Errorf("expected the last good rows, got %v", res.Rows)
	}
}

func TestSessionInputErrors(t *testing.T) {
	tests := []struct {
		name  string
		atoms []models.AlignmentAtom
		grid  []int
		want  error
	}{
		{"empty", nil, []int{0}, ErrEmptyAlignment},
		{"unsorted grid", crossedAtoms(), []int{0, 960, 480}, ErrGridNotIncreasing},
		{"too few ticks", atomsOf(0, 0, 480, 0.5, 480, 0.6, 960, 1.0), []int{0, 480}, ErrInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetBeats(tt.atoms, tt.grid, DefaultOptions())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !IsInputError(err) {
				t.Errorf("IsInputError(%v) = false", err)
			}
		})
	}
}

func TestCorrectProtectsEdges(t *testing.T) {
	atoms := atomsOf(0, 0, 100, 1, 200, 2, 300, 3, 400, 4)
	grid := []int{0, 100, 200, 300, 400}

	kept, removed := Correct(atoms, grid, []Anomaly{{0, 1}, {3, 4}})

	if !reflect.DeepEqual(removed, atomsOf(100, 1, 300, 3)) {
		t.Errorf("unexpected removed atoms %v", removed)
	}
	if !reflect.DeepEqual(kept, atomsOf(0, 0, 200, 2, 400, 4)) {
		t.Errorf("unexpected kept atoms %v", kept)
	}
	if len(atoms) != 5 {
		t.Error("input atoms were modified")
	}
}

func TestCorrectUsesObservedNeighbours(t *testing.T) {
	// Grid ticks 250 and 750 are not observed; the excision widens to the
	// nearest observed ticks around them.
	atoms := atomsOf(0, 0, 200, 0.2, 300, 0.3, 600, 0.6, 800, 0.8, 1000, 1.0)
	grid := []int{250, 750}

	kept, removed := Correct(atoms, grid, []Anomaly{{0, 1}})

	if !reflect.DeepEqual(removed, atomsOf(200, 0.2, 300, 0.3, 600, 0.6, 800, 0.8)) {
		t.Errorf("unexpected removed atoms %v", removed)
	}
	if !reflect.DeepEqual(kept, atomsOf(0, 0, 1000, 1.0)) {
		t.Errorf("unexpected kept atoms %v", kept)
	}
}
