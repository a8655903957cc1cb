package beatgrid

import (
	"reflect"
	"testing"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

func atomsOf(pairs ...float64) []models.AlignmentAtom {
	atoms := make([]models.AlignmentAtom, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		atoms = append(atoms, models.AlignmentAtom{Tatum: int(pairs[i]), Time: pairs[i+1]})
	}
	return atoms
}

func TestDedupKeepsFirstOccurrence(t *testing.T) {
	atoms := atomsOf(
		480, 0.52,
		0, 0.0,
		480, 0.55,
		960, 0.98,
		0, 0.01,
	)

	ticks, times := Dedup(atoms)

	if !reflect.DeepEqual(ticks, []int{0, 480, 960}) {
		t.Fatalf("unexpected ticks %v", ticks)
	}
	if !reflect.DeepEqual(times, []float64{0.0, 0.52, 0.98}) {
		t.Fatalf("unexpected times %v", times)
	}
}

func TestDedupIdempotent(t *testing.T) {
	atoms := atomsOf(0, 0, 0, 0.1, 250, 0.3, 500, 0.6, 250, 0.2, 750, 0.9)

	ticks, times := Dedup(atoms)
	again := make([]models.AlignmentAtom, len(ticks))
	for i := range ticks {
		again[i] = models.AlignmentAtom{Tatum: ticks[i], Time: times[i]}
	}
	ticks2, times2 := Dedup(again)

	if !reflect.DeepEqual(ticks, ticks2) || !reflect.DeepEqual(times, times2) {
		t.Errorf("dedup not idempotent: %v/%v then %v/%v", ticks, times, ticks2, times2)
	}
}

func TestStoreSortsStably(t *testing.T) {
	s := NewStore(atomsOf(960, 1.0, 0, 0.0, 480, 0.5, 480, 0.6))

	got := s.Atoms()
	want := atomsOf(0, 0.0, 480, 0.5, 480, 0.6, 960, 1.0)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if s.DistinctTicks() != 3 {
		t.Errorf("expected 3 distinct ticks, got %d", s.DistinctTicks())
	}

	first, _ := s.First()
	last, _ := s.Last()
	if first.Tatum != 0 || last.Tatum != 960 {
		t.Errorf("unexpected edges %v %v", first, last)
	}
}

func TestStoreNeighbours(t *testing.T) {
	s := NewStore(atomsOf(100, 1, 200, 2, 300, 3))

	tests := []struct {
		tick     int
		before   int
		beforeOK bool
		after    int
		afterOK  bool
	}{
		{50, 0, false, 100, true},
		{100, 100, true, 100, true},
		{250, 200, true, 300, true},
		{300, 300, true, 300, true},
		{301, 300, true, 0, false},
	}

	for _, tt := range tests {
		b, bok := s.LastAtOrBefore(tt.tick)
		a, aok := s.FirstAtOrAfter(tt.tick)
		if b != tt.before || bok != tt.beforeOK {
			t.Errorf("LastAtOrBefore(%d) = %d,%v; expected %d,%v", tt.tick, b, bok, tt.before, tt.beforeOK)
		}
		if a != tt.after || aok != tt.afterOK {
			t.Errorf("FirstAtOrAfter(%d) = %d,%v; expected %d,%v", tt.tick, a, aok, tt.after, tt.afterOK)
		}
	}
}

func TestStoreExcise(t *testing.T) {
	s := NewStore(atomsOf(0, 0, 100, 1, 100, 1.1, 200, 2, 300, 3))

	removed := s.Excise(100, 200)

	if len(removed) != 3 {
		t.Fatalf("expected 3 removed atoms, got %v", removed)
	}
	if !reflect.DeepEqual(s.Atoms(), atomsOf(0, 0, 300, 3)) {
		t.Errorf("unexpected remaining atoms %v", s.Atoms())
	}
	if got := s.Excise(10, 5); got != nil {
		t.Errorf("empty range removed %v", got)
	}
}

func TestStoreTicksAndContains(t *testing.T) {
	s := NewStore(atomsOf(300, 3, 100, 1, 100, 1.5, 200, 2))

	if !reflect.DeepEqual(s.Ticks(), []int{100, 200, 300}) {
		t.Errorf("unexpected ticks %v", s.Ticks())
	}
	if !s.Contains(200) || s.Contains(250) || s.Contains(400) {
		t.Error("Contains disagrees with the stored ticks")
	}
}
