package score

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

var ErrUnsupportedFormat = errors.New("unsupported score format")

// ScoreExtensions are the score formats MuseScore can export from.
var ScoreExtensions = []string{".mscz", ".mxl", ".xml"}

func IsScore(path string) bool {
	return slices.Contains(ScoreExtensions, strings.ToLower(filepath.Ext(path)))
}

// Converter renders a score to a reference MIDI file.
type Converter interface {
	ToMIDI(ctx context.Context, scorePath, midiPath string) error
}

type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// MuseScore converts scores with the MuseScore command line.
type MuseScore struct {
	Bin     string
	Timeout time.Duration
	Run     RunFunc // Defaults to exec.CommandContext
}

const DefaultMuseScore = "mscore"

func NewMuseScore(bin string) *MuseScore {
	if bin == "" {
		bin = DefaultMuseScore
	}
	return &MuseScore{Bin: bin, Timeout: 2 * time.Minute}
}

// ToMIDI exports scorePath to midiPath. An export newer than the score is
// kept as is.
func (m *MuseScore) ToMIDI(ctx context.Context, scorePath, midiPath string) error {
	if !IsScore(scorePath) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(scorePath))
	}
	if utils.IsNewer(midiPath, scorePath) {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(filepath.Dir(midiPath)); err != nil {
		return err
	}

	run := m.Run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		}
	}
	if out, err := run(ctx, m.Bin, scorePath, "--export-to", midiPath); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("musescore failed: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	if !utils.FileExists(midiPath) {
		return fmt.Errorf("musescore wrote no file at %s", midiPath)
	}
	return nil
}
