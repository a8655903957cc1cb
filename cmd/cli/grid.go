package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/himanishpuri/PerfGrid/internal/report"
	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/alignment"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/beatgrid"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/score"
	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

type gridFlags struct {
	quarter  int
	offset   int
	guess    bool
	ref      string
	tps      float64
	maxTries int
	factor   float64
	piece    string
	output   string
	summary  string
}

func newGridFlagSet(name string, gf *gridFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&gf.ref, "ref", "", "Reference MIDI whose beats (or bars) give the grid")
	fs.Float64Var(&gf.tps, "tps", beatgrid.DefaultTicksPerSecond, "Score ticks per reference MIDI second")
	fs.IntVar(&gf.maxTries, "max-tries", beatgrid.DefaultMaxTries, "Maximum interpolation attempts")
	fs.Float64Var(&gf.factor, "factor", beatgrid.DefaultOutlierFactor, "Flag intervals shorter than mean/factor")
	fs.StringVar(&gf.piece, "piece", "", "Piece name stored with the run (default: match file name)")
	fs.StringVar(&gf.output, "o", "", "Output CSV (default: stdout)")
	fs.StringVar(&gf.summary, "summary", "", "Also write a JSON summary to this file")
	return fs
}

func handleBeats(args []string) {
	var gf gridFlags
	fs := newGridFlagSet("beats", &gf)
	fs.IntVar(&gf.quarter, "quarter", -1, "Beat length in ticks (asked for when missing)")
	fs.IntVar(&gf.offset, "offset", -1, "Tick of the first whole beat (asked for when missing)")
	fs.BoolVar(&gf.guess, "guess", false, "Guess the beat length and anacrusis offset")
	pos := parseCommand(fs, args, "beats <match_file> [options]", 1)

	runGrid(models.KindBeats, pos[0], gf)
}

func handleBars(args []string) {
	var gf gridFlags
	fs := newGridFlagSet("bars", &gf)
	pos := parseCommand(fs, args, "bars <match_file> -ref ref.mid [options]", 1)
	if gf.ref == "" {
		fail("bars need a reference MIDI (-ref)")
	}

	runGrid(models.KindBars, pos[0], gf)
}

func runGrid(kind models.GridKind, matchPath string, gf gridFlags) {
	atoms, err := alignment.ReadMatchFile(matchPath)
	if err != nil {
		fail("Failed to read alignment: %v", err)
	}

	req := perfgrid.GridRequest{
		PieceID: gf.piece,
		Kind:    kind,
		Atoms:   atoms,
		Guess:   gf.guess,
		Prompt:  promptBeatParams(os.Stdin, os.Stderr),
	}
	if req.PieceID == "" {
		req.PieceID = strings.TrimSuffix(utils.Stem(matchPath), "_match")
	}

	if gf.ref != "" {
		ref, err := score.ReadReference(gf.ref)
		if err != nil {
			fail("Failed to read reference: %v", err)
		}
		seconds := ref.Beats
		if kind == models.KindBars {
			seconds = ref.Downbeats
		}
		if req.Grid, err = beatgrid.FromSeconds(seconds, gf.tps); err != nil {
			fail("Invalid reference grid: %v", err)
		}
	} else {
		if gf.quarter > 0 {
			req.QuarterLength = &gf.quarter
		}
		if gf.offset >= 0 {
			req.AnacrusisOffset = &gf.offset
		}
	}

	svc := mustService(perfgrid.WithMaxTries(gf.maxTries), perfgrid.WithOutlierFactor(gf.factor))
	defer svc.Close()

	ctx, cancel := commandContext(time.Minute)
	defer cancel()

	res, err := svc.ExtractGrid(ctx, req)
	if err != nil {
		fail("Failed to estimate %s: %v", kind, err)
	}

	writeOutput(gf.output, func(w io.Writer) error { return report.WriteBeats(w, res.Result.Rows) })
	if gf.summary != "" {
		writeOutput(gf.summary, func(w io.Writer) error { return report.WriteJSON(w, res.Summary) })
	}
	printGridSummary(res)
}

func printGridSummary(res *perfgrid.GridResult) {
	s := res.Summary
	w := os.Stderr

	status := "✅"
	if !res.Result.Converged() {
		status = "⚠️ "
	}
	fmt.Fprintf(w, "\n%s %s %s from %s atoms (%s after %d attempt(s))\n", status,
		humanize.Comma(int64(s.Rows)), s.Kind, humanize.Comma(int64(s.Atoms)), s.Outcome, s.Attempts)
	if res.Params != nil {
		fmt.Fprintf(w, "   Grid:         %d ticks per beat from tick %d\n", res.Params.QuarterLength, res.Params.AnacrusisOffset)
	}
	fmt.Fprintf(w, "   Interpolated: %d | Undefined: %d | Ignored atoms: %d\n", s.Interpolated, s.Undefined, s.Ignored)

	if times := res.Result.Times(); len(times) > 1 {
		first, last := times[0], times[len(times)-1]
		if !math.IsNaN(first) && !math.IsNaN(last) {
			span := time.Duration((last - first) * float64(time.Second))
			fmt.Fprintf(w, "   Span:         %s\n", durafmt.Parse(span).LimitFirstN(2))
		}
	}
	if s.Tempo != nil {
		fmt.Fprintf(w, "   Tempo:        %.1f bpm (%.1f to %.1f)\n", s.Tempo.Mean, s.Tempo.Min, s.Tempo.Max)
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "   Run:          %s\n", res.RunID)
	}
}

// promptBeatParams asks for missing beat parameters on the terminal.
func promptBeatParams(in io.Reader, out io.Writer) beatgrid.PromptFunc {
	scanner := bufio.NewScanner(in)
	ask := func(question string) (int, error) {
		for {
			fmt.Fprint(out, question)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return 0, err
				}
				return 0, io.ErrUnexpectedEOF
			}
			n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			if err == nil && n >= 0 {
				return n, nil
			}
			fmt.Fprintln(out, "Please enter a non-negative whole number.")
		}
	}

	return func(head []models.AlignmentAtom, params beatgrid.BeatParams, needQuarter, needOffset bool) (beatgrid.BeatParams, error) {
		fmt.Fprintln(out, "First aligned notes (tatum, time):")
		for _, a := range head {
			fmt.Fprintf(out, "  %6d  %8.3f\n", a.Tatum, a.Time)
		}
		var err error
		if needQuarter {
			if params.QuarterLength, err = ask("Quarter length in ticks: "); err != nil {
				return params, err
			}
		}
		if needOffset {
			if params.AnacrusisOffset, err = ask("Anacrusis offset in ticks: "); err != nil {
				return params, err
			}
		}
		return params, nil
	}
}

func handleTempo(args []string) {
	fs := flag.NewFlagSet("tempo", flag.ExitOnError)
	output := fs.String("o", "", "Output CSV (default: stdout)")
	pos := parseCommand(fs, args, "tempo <beats.csv> [-o out.csv]", 1)

	times, err := report.ReadBeatTimesFile(pos[0])
	if err != nil {
		fail("Failed to read beats: %v", err)
	}
	points := beatgrid.Tempo(times)
	writeOutput(*output, func(w io.Writer) error { return report.WriteTempo(w, points) })

	if stats := report.TempoSummary(points); stats != nil {
		fmt.Fprintf(os.Stderr, "🎼 %d tempo points, mean %.1f bpm\n", len(points), stats.Mean)
	}
}

func handleNoteTempo(args []string) {
	fs := flag.NewFlagSet("notetempo", flag.ExitOnError)
	output := fs.String("o", "", "Output CSV (default: stdout)")
	backward := fs.Bool("backward", false, "Walk the alignment from the last note")
	pos := parseCommand(fs, args, "notetempo <match_file> [-backward] [-o out.csv]", 1)

	atoms, err := alignment.ReadMatchFile(pos[0])
	if err != nil {
		fail("Failed to read alignment: %v", err)
	}
	points := beatgrid.NoteTempo(atoms, !*backward)
	writeOutput(*output, func(w io.Writer) error { return report.WriteNoteTempo(w, points) })
}

func handleAlign(args []string) {
	fs := flag.NewFlagSet("align", flag.ExitOnError)
	pos := parseCommand(fs, args, "align <ref.mid> <perf.mid>", 2)

	svc := mustService(perfgrid.WithPersist(false))
	defer svc.Close()

	fmt.Fprintln(os.Stderr, "🔍 Aligning performance to reference...")
	ctx, cancel := commandContext(alignment.DefaultAlignTimeout)
	defer cancel()

	start := time.Now()
	atoms, err := svc.Align(ctx, pos[0], pos[1])
	if err != nil {
		fail("Failed to align: %v", err)
	}
	fmt.Fprintf(os.Stderr, "✅ %s aligned notes in %s\n",
		humanize.Comma(int64(len(atoms))), durafmt.Parse(time.Since(start)).LimitFirstN(2))
}

func handleSustain(args []string) {
	fs := flag.NewFlagSet("sustain", flag.ExitOnError)
	output := fs.String("o", "", "Output CSV (default: stdout)")
	pos := parseCommand(fs, args, "sustain <perf.mid> [-o out.csv]", 1)

	perf, err := score.ReadPerformance(pos[0])
	if err != nil {
		fail("Failed to read performance: %v", err)
	}
	writeOutput(*output, func(w io.Writer) error { return report.WriteSustain(w, perf.Sustain) })
}

func handleVelocity(args []string) {
	fs := flag.NewFlagSet("velocity", flag.ExitOnError)
	output := fs.String("o", "", "Output CSV (default: stdout)")
	pos := parseCommand(fs, args, "velocity <perf.mid> [-o out.csv]", 1)

	perf, err := score.ReadPerformance(pos[0])
	if err != nil {
		fail("Failed to read performance: %v", err)
	}
	if len(perf.Onsets) == 0 {
		fail("No note on event detected in %s", pos[0])
	}
	writeOutput(*output, func(w io.Writer) error { return report.WriteVelocity(w, perf.Onsets) })
}
