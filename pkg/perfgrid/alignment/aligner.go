package alignment

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

// Aligner aligns a performance MIDI to a reference (score) MIDI.
type Aligner interface {
	Align(ctx context.Context, refMIDI, perfMIDI string) ([]models.AlignmentAtom, error)
}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

// RunFunc runs an external program and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

const DefaultAlignTimeout = 10 * time.Minute

// NakamuraAligner runs Eita Nakamura's symbolic music alignment tools:
// midi2pianoroll, SprToFmt3x, Fmt3xToHmm, ScorePerfmMatcher, ErrorDetection
// and RealignmentMOHMM, all expected in BinDir.
type NakamuraAligner struct {
	BinDir  string
	WorkDir string
	Timeout time.Duration // Applied when ctx has no deadline
	Cleanup bool          // Remove intermediate files, keeping the match file
	Logger  Logger
	Run     RunFunc // Defaults to exec.CommandContext
}

func NewNakamuraAligner(binDir, workDir string) *NakamuraAligner {
	return &NakamuraAligner{
		BinDir:  binDir,
		WorkDir: workDir,
		Timeout: DefaultAlignTimeout,
		Cleanup: true,
	}
}

// matchPaths names the files produced for one reference/performance pair.
type matchPaths struct {
	refMID, refSpr, fmt3x, hmm        string
	perfMID, perfSpr, pre, err, match string
}

func (a *NakamuraAligner) paths(refMIDI, perfMIDI string) matchPaths {
	ref := filepath.Join(a.WorkDir, strings.TrimSuffix(utils.Stem(refMIDI), "_ref"))
	perf := filepath.Join(a.WorkDir, utils.Stem(perfMIDI))
	return matchPaths{
		refMID:  ref + "_ref.mid",
		refSpr:  ref + "_ref_spr.txt",
		fmt3x:   ref + "_fmt3x.txt",
		hmm:     ref + "_hmm.txt",
		perfMID: perf + "_perf.mid",
		perfSpr: perf + "_perf_spr.txt",
		pre:     perf + "_pre_match.txt",
		err:     perf + "_err_match.txt",
		match:   perf + "_match.txt",
	}
}

// MatchPath returns where the match file for perfMIDI is written.
func (a *NakamuraAligner) MatchPath(refMIDI, perfMIDI string) string {
	return a.paths(refMIDI, perfMIDI).match
}

// Align runs the tool chain unless an up to date match file exists, then
// reads the match file.
func (a *NakamuraAligner) Align(ctx context.Context, refMIDI, perfMIDI string) ([]models.AlignmentAtom, error) {
	p := a.paths(refMIDI, perfMIDI)

	if utils.IsNewer(p.match, refMIDI, perfMIDI) {
		a.debugf("Reusing alignment %s", p.match)
		return ReadMatchFile(p.match)
	}

	if err := a.runChain(ctx, refMIDI, perfMIDI, p); err != nil {
		return nil, err
	}
	if a.Cleanup {
		for _, f := range []string{p.refSpr, p.fmt3x, p.hmm, p.perfMID, p.perfSpr, p.pre, p.err} {
			utils.DeleteFile(f)
		}
	}
	return ReadMatchFile(p.match)
}

func (a *NakamuraAligner) runChain(ctx context.Context, refMIDI, perfMIDI string, p matchPaths) error {
	if _, ok := ctx.Deadline(); !ok && a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(a.WorkDir); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	if refMIDI != p.refMID {
		if err := utils.CopyFile(refMIDI, p.refMID); err != nil {
			return err
		}
	}
	if err := utils.CopyFile(perfMIDI, p.perfMID); err != nil {
		return err
	}

	steps := [][]string{
		{"midi2pianoroll", "0", strings.TrimSuffix(p.refMID, ".mid")},
		{"midi2pianoroll", "0", strings.TrimSuffix(p.perfMID, ".mid")},
		{"SprToFmt3x", p.refSpr, p.fmt3x},
		{"Fmt3xToHmm", p.fmt3x, p.hmm},
		{"ScorePerfmMatcher", p.hmm, p.perfSpr, p.pre, "0.01"},
		{"ErrorDetection", p.fmt3x, p.hmm, p.pre, p.err, "0"},
		{"RealignmentMOHMM", p.fmt3x, p.hmm, p.err, p.match, "0.3"},
	}

	run := a.Run
	if run == nil {
		run = execRun
	}
	for _, step := range steps {
		exe := filepath.Join(a.BinDir, step[0])
		a.debugf("Running %s", strings.Join(append([]string{exe}, step[1:]...), " "))
		if out, err := run(ctx, exe, step[1:]...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s failed: %v (%s)", step[0], err, strings.TrimSpace(string(out)))
		}
	}

	if !utils.FileExists(p.match) {
		return fmt.Errorf("aligner produced no match file at %s", p.match)
	}
	return nil
}

func (a *NakamuraAligner) debugf(format string, args ...any) {
	if a.Logger != nil {
		a.Logger.Debugf(format, args...)
	}
}
