package beatgrid

import (
	"errors"
	"fmt"
	"slices"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

const DefaultMaxTries = 3

// Options configures grid building and the correction loop.
type Options struct {
	QuarterLength   *int // Ticks per beat; nil to guess or prompt
	AnacrusisOffset *int // Tick of the first whole beat; nil to guess or prompt
	Guess           bool // Always guess beat parameters
	Prompt          PromptFunc

	MaxTries      int     // Interpolation attempts, default DefaultMaxTries
	OutlierFactor float64 // Default DefaultOutlierFactor
	Logger        Logger
}

func DefaultOptions() Options {
	return Options{
		MaxTries:      DefaultMaxTries,
		OutlierFactor: DefaultOutlierFactor,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxTries <= 0 {
		o.MaxTries = DefaultMaxTries
	}
	if o.OutlierFactor <= 0 {
		o.OutlierFactor = DefaultOutlierFactor
	}
	o.Logger = orNop(o.Logger)
	return o
}

// State is a step of the correction loop.
type State int

const (
	StateInterpolate State = iota
	StateDetect
	StateCorrect
	StateDone
	StateGiveUp
)

func (s State) String() string {
	switch s {
	case StateInterpolate:
		return "interpolate"
	case StateDetect:
		return "detect"
	case StateCorrect:
		return "correct"
	case StateDone:
		return "done"
	case StateGiveUp:
		return "give-up"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further step is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateGiveUp
}

// Outcome summarises how a session ended.
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomeGaveUp    Outcome = "gave_up"
)

// Result is the beat grid produced by a session.
type Result struct {
	Rows      []models.BeatRow       // One per reference tick, in grid order
	Ignored   []models.AlignmentAtom // Atoms excised by corrections
	Attempts  int                    // Interpolations performed
	Outcome   Outcome
	Remaining []Anomaly // Anomalies still present when giving up
}

func (r *Result) Converged() bool { return r.Outcome == OutcomeConverged }

// Times returns the row times in grid order.
func (r *Result) Times() []float64 {
	times := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		times[i] = row.Time
	}
	return times
}

// Session is one run of the correction loop over an alignment. It owns its
// working set; nothing is shared between sessions.
type Session struct {
	grid      []int
	store     *Store
	opts      Options
	state     State
	attempts  int
	rows      []models.BeatRow
	anomalies []Anomaly
	ignored   []models.AlignmentAtom
}

func NewSession(atoms []models.AlignmentAtom, grid []int, opts Options) (*Session, error) {
	if len(atoms) == 0 {
		return nil, ErrEmptyAlignment
	}
	if err := ValidateGrid(grid); err != nil {
		return nil, err
	}
	return &Session{
		grid:  slices.Clone(grid),
		store: NewStore(atoms),
		opts:  opts.withDefaults(),
		state: StateInterpolate,
	}, nil
}

func (s *Session) State() State { return s.state }

func (s *Session) Attempts() int { return s.attempts }

// Step advances the loop by one state. Errors are only returned from the
// interpolation of the initial alignment.
func (s *Session) Step() (State, error) {
	log := s.opts.Logger

	switch s.state {
	case StateInterpolate:
		ticks, times := s.store.Dedup()
		rows, err := Interpolate(ticks, times, s.grid)
		if err != nil {
			return s.state, err
		}
		s.attempts++
		s.rows = rows
		s.state = StateDetect

	case StateDetect:
		s.anomalies = FindOutliers(s.rows, s.opts.OutlierFactor, log)
		switch {
		case len(s.anomalies) == 0:
			s.state = StateDone
		case s.attempts >= s.opts.MaxTries:
			log.Warnf("Outliers remain after %d tries to remove them. Giving up on correction.", s.attempts)
			s.state = StateGiveUp
		default:
			s.state = StateCorrect
		}

	case StateCorrect:
		kept, removed := Correct(s.store.Atoms(), s.grid, s.anomalies)
		if distinct := NewStore(kept).DistinctTicks(); distinct < MinSplinePoints {
			log.Warnf("Correction would leave %d distinct ticks (need %d). Giving up on correction.", distinct, MinSplinePoints)
			s.state = StateGiveUp
			break
		}
		for _, a := range removed {
			log.Debugf("Removing %v in correction attempt %d", a, s.attempts)
		}
		s.store = NewStore(kept)
		s.ignored = append(s.ignored, removed...)
		s.state = StateInterpolate
	}

	return s.state, nil
}

// Run steps the session until it is done or gives up.
func (s *Session) Run() (*Result, error) {
	for !s.state.Terminal() {
		if _, err := s.Step(); err != nil {
			return nil, err
		}
	}
	return s.Result(), nil
}

// Result returns the current rows; it is final once State is terminal.
func (s *Session) Result() *Result {
	res := &Result{
		Rows:     slices.Clone(s.rows),
		Ignored:  slices.Clone(s.ignored),
		Attempts: s.attempts,
		Outcome:  OutcomeConverged,
	}
	if s.state == StateGiveUp {
		res.Outcome = OutcomeGaveUp
		res.Remaining = slices.Clone(s.anomalies)
	}
	return res
}

// Correct excises, for each anomaly, the atoms between the last observed tick
// at or before the grid tick preceding the anomaly and the first observed tick
// at or after the grid tick following it. The first and last atoms are kept so
// the spline still spans the grid. atoms is not modified.
func Correct(atoms []models.AlignmentAtom, grid []int, anomalies []Anomaly) (kept, removed []models.AlignmentAtom) {
	store := NewStore(atoms)
	for _, an := range anomalies {
		if an.Before < 0 || an.After >= len(grid) || store.Len() == 0 {
			continue
		}
		lo, hi := excisionRange(store, grid[an.Before], grid[an.After])
		removed = append(removed, store.Excise(lo, hi)...)
	}
	return store.Atoms(), removed
}

func excisionRange(store *Store, before, after int) (lo, hi int) {
	lo, ok := store.LastAtOrBefore(before)
	if !ok {
		lo = before
	}
	hi, ok = store.FirstAtOrAfter(after)
	if !ok {
		hi = after
	}

	first, _ := store.First()
	last, _ := store.Last()
	if lo == first.Tatum {
		lo++
	}
	if hi == last.Tatum {
		hi--
	}
	return lo, hi
}

// GetBeats estimates the performance time of every grid tick from an
// alignment, correcting outliers up to opts.MaxTries interpolations. Running
// out of tries is not an error: the result then has Outcome OutcomeGaveUp.
func GetBeats(atoms []models.AlignmentAtom, grid []int, opts Options) (*Result, error) {
	s, err := NewSession(atoms, grid, opts)
	if err != nil {
		return nil, err
	}
	res, err := s.Run()
	if err != nil {
		return nil, fmt.Errorf("estimating beats: %w", err)
	}
	return res, nil
}

// IsInputError reports whether err means the session inputs were unusable
// rather than the computation failing.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyAlignment) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrGridNotIncreasing)
}
