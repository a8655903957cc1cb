package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/himanishpuri/PerfGrid/internal/report"
	"github.com/himanishpuri/PerfGrid/pkg/logger"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/alignment"
)

// Global flags
var (
	dbPath       string
	workDir      string
	alignerBin   string
	museScoreBin string
	logLevel     string
	noStore      bool
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("PERFGRID_DB_PATH", "perfgrid.sqlite3"), "Path to the SQLite run database")
	flag.StringVar(&workDir, "work", getEnvOrDefault("PERFGRID_WORK_DIR", ""), "Directory for intermediate files (default: <piece>/tmp)")
	flag.StringVar(&alignerBin, "aligner", getEnvOrDefault("PERFGRID_ALIGNER_BIN", "bin"), "Directory holding the alignment tools")
	flag.StringVar(&museScoreBin, "musescore", getEnvOrDefault("PERFGRID_MUSESCORE", "mscore"), "MuseScore executable")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault("PERFGRID_LOG_LEVEL", "info"), "Log level: debug, info, warn")
	flag.BoolVar(&noStore, "no-store", false, "Do not store runs in the database")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a PerfGrid service with the global options.
func createService(extra ...perfgrid.Option) (perfgrid.Service, error) {
	opts := []perfgrid.Option{
		perfgrid.WithDBPath(dbPath),
		perfgrid.WithWorkDir(workDir),
		perfgrid.WithAlignerBin(alignerBin),
		perfgrid.WithMuseScore(museScoreBin),
		perfgrid.WithPersist(!noStore),
	}
	return perfgrid.NewService(append(opts, extra...)...)
}

func mustService(extra ...perfgrid.Option) perfgrid.Service {
	svc, err := createService(extra...)
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	return svc
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger()
	if lvl, ok := logger.ParseLevel(logLevel); ok {
		log.SetLevel(lvl)
	}

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	start := time.Now()
	switch command {
	case "beats":
		handleBeats(args)
	case "bars":
		handleBars(args)
	case "tempo":
		handleTempo(args)
	case "notetempo":
		handleNoteTempo(args)
	case "align":
		handleAlign(args)
	case "sustain":
		handleSustain(args)
	case "velocity":
		handleVelocity(args)
	case "process":
		handleProcess(args)
	case "runs":
		handleRuns(args)
	case "show":
		handleShow(args)
	case "delete":
		handleDelete(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	log.Debugf("%s finished in %s", command, durafmt.Parse(time.Since(start)).LimitFirstN(2))
}

// parseCommand parses a subcommand whose positional arguments may come
// before its flags, e.g. "beats song_match.txt -guess".
func parseCommand(fs *flag.FlagSet, args []string, usage string, npos int) []string {
	var positional []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional = append(positional, args[0])
		args = args[1:]
	}
	fs.Parse(args)
	positional = append(positional, fs.Args()...)

	if len(positional) < npos {
		fmt.Fprintf(os.Stderr, "Usage: perfgrid %s\n", usage)
		fs.PrintDefaults()
		os.Exit(1)
	}
	return positional
}

// fail reports a fatal error on stderr and exits.
func fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "❌ %s\n", msg)

	var perr *alignment.ParseError
	for _, a := range args {
		if err, ok := a.(error); ok && errors.As(err, &perr) {
			fmt.Fprintf(os.Stderr, "   Check line %d of %s\n", perr.Line, perr.Path)
		}
	}
	logger.GetLogger().Debugf("fatal: %s", msg)
	os.Exit(1)
}

// writeOutput writes to path, or to stdout when path is empty.
func writeOutput(path string, write func(io.Writer) error) {
	if path == "" {
		if err := write(os.Stdout); err != nil {
			fail("Failed to write output: %v", err)
		}
		return
	}
	if err := report.WriteFile(path, write); err != nil {
		fail("Failed to write %s: %v", path, err)
	}
	fmt.Fprintf(os.Stderr, "✅ Wrote %s\n", path)
}

func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func printUsage() {
	w := os.Stderr
	fmt.Fprintln(w, "PerfGrid - score to performance beat grids")
	fmt.Fprintln(w, "\nGlobal Options:")
	fmt.Fprintln(w, "  -db <path>          SQLite run database (env: PERFGRID_DB_PATH, default: perfgrid.sqlite3)")
	fmt.Fprintln(w, "  -work <dir>         Intermediate files (env: PERFGRID_WORK_DIR, default: <piece>/tmp)")
	fmt.Fprintln(w, "  -aligner <dir>      Alignment tools directory (env: PERFGRID_ALIGNER_BIN, default: bin)")
	fmt.Fprintln(w, "  -musescore <bin>    MuseScore executable (env: PERFGRID_MUSESCORE, default: mscore)")
	fmt.Fprintln(w, "  -log-level <level>  debug, info or warn (env: PERFGRID_LOG_LEVEL)")
	fmt.Fprintln(w, "  -no-store           Do not store runs")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  perfgrid [global-options] beats <match_file> [-quarter N] [-offset N] [-guess] [-ref ref.mid] [-o out.csv]")
	fmt.Fprintln(w, "  perfgrid [global-options] bars <match_file> -ref ref.mid [-o out.csv]")
	fmt.Fprintln(w, "  perfgrid [global-options] tempo <beats.csv> [-o out.csv]")
	fmt.Fprintln(w, "  perfgrid [global-options] notetempo <match_file> [-backward] [-o out.csv]")
	fmt.Fprintln(w, "  perfgrid [global-options] align <ref.mid> <perf.mid>")
	fmt.Fprintln(w, "  perfgrid [global-options] sustain <perf.mid> [-o out.csv]")
	fmt.Fprintln(w, "  perfgrid [global-options] velocity <perf.mid> [-o out.csv]")
	fmt.Fprintln(w, "  perfgrid [global-options] process <base_dir> [-piece name] [-jobs N]")
	fmt.Fprintln(w, "  perfgrid [global-options] runs [-piece name]")
	fmt.Fprintln(w, "  perfgrid [global-options] show <run_id>")
	fmt.Fprintln(w, "  perfgrid [global-options] delete <run_id>")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  # Beats of a constant 500-tick grid, guessing the anacrusis")
	fmt.Fprintln(w, "  perfgrid beats ballade_match.txt -guess -o ballade_beats.csv")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Process every piece folder under data/")
	fmt.Fprintln(w, "  perfgrid -aligner ./AlignmentTool/Programs process data")
}
