package beatgrid

import (
	"fmt"
	"math"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

const (
	// DefaultQuarterLength is the beat length, in ticks, of reference MIDI
	// exported from the score.
	DefaultQuarterLength = 500

	// DefaultTicksPerSecond converts reference MIDI seconds to the aligner's
	// tatum base (milliseconds).
	DefaultTicksPerSecond = 1000.0

	guessCandidates = 10
)

// BeatParams describes a constant-length beat grid.
type BeatParams struct {
	QuarterLength   int // Ticks per beat
	AnacrusisOffset int // Tick of the first whole beat
}

// PromptFunc asks for beat parameters the caller did not provide. head holds
// the first atoms of the alignment for context; params holds the known values.
type PromptFunc func(head []models.AlignmentAtom, params BeatParams, needQuarter, needOffset bool) (BeatParams, error)

// GuessBeatParams tries each of the first distinct ticks as the anacrusis
// offset of a DefaultQuarterLength grid and keeps the one putting the most
// observed ticks on a beat. ticks must be sorted and distinct. ok is false when
// no candidate put any tick on a beat; the offset is then 0.
func GuessBeatParams(ticks []int) (params BeatParams, ok bool) {
	params = BeatParams{QuarterLength: DefaultQuarterLength}
	if len(ticks) == 0 {
		return params, false
	}

	maxTick := ticks[len(ticks)-1]
	best := 0
	for _, offset := range ticks[:min(guessCandidates, len(ticks))] {
		count := 0
		for _, t := range ticks {
			if t >= offset && t < maxTick && (t-offset)%DefaultQuarterLength == 0 {
				count++
			}
		}
		if count > best {
			best = count
			params.AnacrusisOffset = offset
		}
	}
	return params, best > 0
}

// Arange returns offset, offset+step, ... up to but excluding stop.
func Arange(offset, stop, step int) ([]int, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: beat length %d", ErrInvalidBeatParams, step)
	}
	var grid []int
	for t := offset; t < stop; t += step {
		grid = append(grid, t)
	}
	return grid, nil
}

// MakeReference builds a constant-beat reference grid for an alignment.
//
// With opts.Guess the parameters are always guessed. Otherwise missing
// parameters are asked through opts.Prompt, or guessed when there is no
// prompt. A failed guess falls back to offset 0 with a warning.
func MakeReference(atoms []models.AlignmentAtom, opts Options) ([]int, BeatParams, error) {
	log := orNop(opts.Logger)
	if len(atoms) == 0 {
		return nil, BeatParams{}, ErrEmptyAlignment
	}

	ticks, _ := Dedup(atoms)
	maxTick := ticks[len(ticks)-1]

	needQuarter := opts.QuarterLength == nil
	needOffset := opts.AnacrusisOffset == nil

	var params BeatParams
	if !needQuarter {
		params.QuarterLength = *opts.QuarterLength
	}
	if !needOffset {
		params.AnacrusisOffset = *opts.AnacrusisOffset
	}

	switch {
	case opts.Guess || ((needQuarter || needOffset) && opts.Prompt == nil):
		guessed, ok := GuessBeatParams(ticks)
		if !ok {
			log.Warnf("No tick lands on a %d-tick beat grid, using anacrusis offset 0", guessed.QuarterLength)
		}
		if opts.Guess || needQuarter {
			params.QuarterLength = guessed.QuarterLength
		}
		if opts.Guess || needOffset {
			params.AnacrusisOffset = guessed.AnacrusisOffset
		}
		log.Infof("Guessed beat parameters: quarter=%d offset=%d", params.QuarterLength, params.AnacrusisOffset)
	case needQuarter || needOffset:
		head := NewStore(atoms).Atoms()
		head = head[:min(guessCandidates, len(head))]
		prompted, err := opts.Prompt(head, params, needQuarter, needOffset)
		if err != nil {
			return nil, BeatParams{}, fmt.Errorf("prompting beat parameters: %w", err)
		}
		params = prompted
	}

	grid, err := Arange(params.AnacrusisOffset, maxTick, params.QuarterLength)
	if err != nil {
		return nil, params, err
	}
	return grid, params, nil
}

// FromSeconds converts reference times in seconds to score ticks.
func FromSeconds(seconds []float64, ticksPerSecond float64) ([]int, error) {
	if ticksPerSecond <= 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	grid := make([]int, len(seconds))
	for i, s := range seconds {
		grid[i] = int(math.Round(s * ticksPerSecond))
	}
	if err := ValidateGrid(grid); err != nil {
		return nil, err
	}
	return grid, nil
}

// ValidateGrid checks that grid ticks strictly increase.
func ValidateGrid(grid []int) error {
	for i := 1; i < len(grid); i++ {
		if grid[i] <= grid[i-1] {
			return fmt.Errorf("%w: tick %d at index %d follows %d", ErrGridNotIncreasing, grid[i], i, grid[i-1])
		}
	}
	return nil
}
