package beatgrid

import (
	"errors"
	"reflect"
	"testing"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestGuessBeatParams(t *testing.T) {
	tests := []struct {
		name   string
		ticks  []int
		offset int
		ok     bool
	}{
		{"anacrusis", []int{250, 750, 1000, 1250, 1750, 2250}, 250, true},
		{"tie keeps earliest", []int{0, 250, 500, 750, 1000}, 0, true},
		{"single tick", []int{7}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, ok := GuessBeatParams(tt.ticks)
			if ok != tt.ok {
				t.Errorf("ok = %v, expected %v", ok, tt.ok)
			}
			if params.QuarterLength != DefaultQuarterLength {
				t.Errorf("quarter length %d, expected %d", params.QuarterLength, DefaultQuarterLength)
			}
			if params.AnacrusisOffset != tt.offset {
				t.Errorf("offset %d, expected %d", params.AnacrusisOffset, tt.offset)
			}
		})
	}
}

func TestGuessOnlyTriesFirstTenTicks(t *testing.T) {
	// The eleventh tick would put more notes on the beat, but is never tried.
	ticks := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 511, 1011, 1511, 2011, 2511}

	params, ok := GuessBeatParams(ticks)
	if !ok {
		t.Fatal("expected a guess")
	}
	if params.AnacrusisOffset == 11 {
		t.Errorf("offset 11 is outside the candidate window")
	}
}

func TestMakeReferenceExplicit(t *testing.T) {
	atoms := atomsOf(0, 0, 480, 0.5, 1920, 2.0, 960, 1.0)
	opts := Options{QuarterLength: intPtr(480), AnacrusisOffset: intPtr(0)}

	grid, params, err := MakeReference(atoms, opts)
	if err != nil {
		t.Fatalf("MakeReference failed: %v", err)
	}
	if params != (BeatParams{QuarterLength: 480, AnacrusisOffset: 0}) {
		t.Errorf("unexpected params %+v", params)
	}
	if !reflect.DeepEqual(grid, []int{0, 480, 960, 1440}) {
		t.Errorf("unexpected grid %v", grid)
	}
}

func TestMakeReferenceGuessOverridesParams(t *testing.T) {
	atoms := atomsOf(250, 0.1, 750, 0.6, 1250, 1.1, 1750, 1.6, 2250, 2.1)
	opts := Options{QuarterLength: intPtr(100), AnacrusisOffset: intPtr(3), Guess: true}

	grid, params, err := MakeReference(atoms, opts)
	if err != nil {
		t.Fatalf("MakeReference failed: %v", err)
	}
	if params.QuarterLength != 500 || params.AnacrusisOffset != 250 {
		t.Errorf("unexpected params %+v", params)
	}
	if !reflect.DeepEqual(grid, []int{250, 750, 1250, 1750}) {
		t.Errorf("unexpected grid %v", grid)
	}
}

func TestMakeReferencePromptsForMissing(t *testing.T) {
	atoms := atomsOf(0, 0, 400, 0.5, 800, 1.0, 1200, 1.5)
	var asked []bool
	opts := Options{
		QuarterLength: intPtr(400),
		Prompt: func(head []models.AlignmentAtom, params BeatParams, needQuarter, needOffset bool) (BeatParams, error) {
			asked = []bool{needQuarter, needOffset}
			if len(head) != 4 {
				t.Errorf("expected 4 atoms of context, got %d", len(head))
			}
			params.AnacrusisOffset = 400
			return params, nil
		},
	}

	grid, _, err := MakeReference(atoms, opts)
	if err != nil {
		t.Fatalf("MakeReference failed: %v", err)
	}
	if !reflect.DeepEqual(asked, []bool{false, true}) {
		t.Errorf("prompt asked for %v", asked)
	}
	if !reflect.DeepEqual(grid, []int{400, 800}) {
		t.Errorf("unexpected grid %v", grid)
	}
}

func TestMakeReferenceErrors(t *testing.T) {
	if _, _, err := MakeReference(nil, Options{Guess: true}); !errors.Is(err, ErrEmptyAlignment) {
		t.Errorf("expected ErrEmptyAlignment, got %v", err)
	}

	atoms := atomsOf(0, 0, 500, 1)
	opts := Options{QuarterLength: intPtr(0), AnacrusisOffset: intPtr(0)}
	if _, _, err := MakeReference(atoms, opts); !errors.Is(err, ErrInvalidBeatParams) {
		t.Errorf("expected ErrInvalidBeatParams, got %v", err)
	}
}

func TestFromSeconds(t *testing.T) {
	grid, err := FromSeconds([]float64{0.5, 1.0004, 1.5}, 0)
	if err != nil {
		t.Fatalf("FromSeconds failed: %v", err)
	}
	if !reflect.DeepEqual(grid, []int{500, 1000, 1500}) {
		t.Errorf("unexpected grid %v", grid)
	}

	if _, err := FromSeconds([]float64{0.5, 0.5001}, 1000); !errors.Is(err, ErrGridNotIncreasing) {
		t.Errorf("expected ErrGridNotIncreasing, got %v", err)
	}
}
