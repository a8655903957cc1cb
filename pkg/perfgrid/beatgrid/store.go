package beatgrid

import (
	"slices"
	"sort"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// Store is the working set of alignment atoms of one session, kept sorted by
// tick. Atoms sharing a tick keep the order the aligner reported them in.
type Store struct {
	atoms []models.AlignmentAtom
}

func NewStore(atoms []models.AlignmentAtom) *Store {
	cp := slices.Clone(atoms)
	slices.SortStableFunc(cp, func(a, b models.AlignmentAtom) int {
		return a.Tatum - b.Tatum
	})
	return &Store{atoms: cp}
}

func (s *Store) Len() int { return len(s.atoms) }

// Atoms returns a copy of the working set in tick order.
func (s *Store) Atoms() []models.AlignmentAtom {
	return slices.Clone(s.atoms)
}

func (s *Store) First() (models.AlignmentAtom, bool) {
	if len(s.atoms) == 0 {
		return models.AlignmentAtom{}, false
	}
	return s.atoms[0], true
}

func (s *Store) Last() (models.AlignmentAtom, bool) {
	if len(s.atoms) == 0 {
		return models.AlignmentAtom{}, false
	}
	return s.atoms[len(s.atoms)-1], true
}

// Dedup returns the distinct ticks in ascending order with one time each.
func (s *Store) Dedup() ([]int, []float64) {
	return Dedup(s.atoms)
}

// DistinctTicks counts the distinct ticks in the working set.
func (s *Store) DistinctTicks() int {
	n := 0
	for i := range s.atoms {
		if i == 0 || s.atoms[i].Tatum != s.atoms[i-1].Tatum {
			n++
		}
	}
	return n
}

// LastAtOrBefore returns the largest observed tick <= tick.
func (s *Store) LastAtOrBefore(tick int) (int, bool) {
	i := sort.Search(len(s.atoms), func(i int) bool { return s.atoms[i].Tatum > tick })
	if i == 0 {
		return 0, false
	}
	return s.atoms[i-1].Tatum, true
}

// FirstAtOrAfter returns the smallest observed tick >= tick.
func (s *Store) FirstAtOrAfter(tick int) (int, bool) {
	i := sort.Search(len(s.atoms), func(i int) bool { return s.atoms[i].Tatum >= tick })
	if i == len(s.atoms) {
		return 0, false
	}
	return s.atoms[i].Tatum, true
}

// Excise removes every atom with lo <= tick <= hi and returns them.
func (s *Store) Excise(lo, hi int) []models.AlignmentAtom {
	if lo > hi {
		return nil
	}
	var removed []models.AlignmentAtom
	kept := make([]models.AlignmentAtom, 0, len(s.atoms))
	for _, a := range s.atoms {
		if a.Tatum >= lo && a.Tatum <= hi {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	s.atoms = kept
	return removed
}

// Dedup reduces atoms to one time per tick. Ticks come back ascending; when
// several atoms share a tick, the first one in the given order wins.
func Dedup(atoms []models.AlignmentAtom) ([]int, []float64) {
	first := make(map[int]float64, len(atoms))
	for _, a := range atoms {
		if _, seen := first[a.Tatum]; !seen {
			first[a.Tatum] = a.Time
		}
	}

	ticks := make([]int, 0, len(first))
	for tick := range first {
		ticks = append(ticks, tick)
	}
	sort.Ints(ticks)

	times := make([]float64, len(ticks))
	for i, tick := range ticks {
		times[i] = first[tick]
	}
	return ticks, times
}

// Ticks returns the distinct ticks in ascending order.
func (s *Store) Ticks() []int {
	ticks := make([]int, 0, len(s.atoms))
	for i, a := range s.atoms {
		if i == 0 || a.Tatum != s.atoms[i-1].Tatum {
			ticks = append(ticks, a.Tatum)
		}
	}
	return ticks
}

func (s *Store) Contains(tick int) bool {
	i := sort.Search(len(s.atoms), func(i int) bool { return s.atoms[i].Tatum >= tick })
	return i < len(s.atoms) && s.atoms[i].Tatum == tick
}
