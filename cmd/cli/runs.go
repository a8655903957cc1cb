package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/himanishpuri/PerfGrid/internal/pieces"
	"github.com/himanishpuri/PerfGrid/pkg/logger"
	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid"
	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

func handleProcess(args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	only := fs.String("piece", "", "Only process this piece folder")
	jobs := fs.Int("jobs", 0, "Pieces processed at once (default: number of CPUs)")
	pos := parseCommand(fs, args, "process <base_dir> [-piece name] [-jobs N]", 1)

	log := logger.GetLogger()
	var list []models.Piece
	if *only != "" {
		piece, err := pieces.Load(filepath.Join(pos[0], *only), log)
		if err != nil {
			fail("Failed to load piece: %v", err)
		}
		list = []models.Piece{piece}
	} else {
		var err error
		if list, err = pieces.Discover(pos[0], log); err != nil {
			fail("Failed to discover pieces: %v", err)
		}
	}
	if len(list) == 0 {
		fmt.Fprintf(os.Stderr, "📭 No piece folders in %s\n", pos[0])
		return
	}

	var extra []perfgrid.Option
	if *jobs > 0 {
		extra = append(extra, perfgrid.WithConcurrency(*jobs))
	}
	svc := mustService(extra...)
	defer svc.Close()

	fmt.Fprintf(os.Stderr, "🎹 Processing %d piece(s)...\n", len(list))
	start := time.Now()
	reports := svc.ProcessBatch(context.Background(), list)

	failed := 0
	for _, rep := range reports {
		if rep.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", rep.PieceID, rep.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "✅ %s: %d output(s)\n", rep.PieceID, len(rep.Outputs))
		for _, skipped := range rep.Skipped {
			fmt.Fprintf(os.Stderr, "   skipped %s\n", skipped)
		}
		if rep.Beats != nil && !rep.Beats.Converged() {
			fmt.Fprintf(os.Stderr, "   ⚠️  beats kept %d anomalies\n", len(rep.Beats.Remaining))
		}
	}

	fmt.Fprintf(os.Stderr, "\nDone in %s: %d succeeded, %d failed\n",
		durafmt.Parse(time.Since(start)).LimitFirstN(2), len(reports)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func handleRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	piece := fs.String("piece", "", "Only list runs of this piece")
	parseCommand(fs, args, "runs [-piece name]", 0)

	svc := mustService()
	defer svc.Close()

	runs, err := svc.ListRuns(*piece)
	if err != nil {
		fail("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("\n📭 No runs in database")
		return
	}

	fmt.Printf("\n📚 Found %d run(s):\n\n", len(runs))
	for i, run := range runs {
		fmt.Printf("%d. %s %s (%s, %s)\n", i+1, run.PieceID, run.Kind, run.Source, humanize.Time(run.CreatedAt))
		fmt.Printf("   ID: %s | Rows: %s | Ignored: %d | Outcome: %s\n",
			run.ID, humanize.Comma(int64(run.RowCount)), run.IgnoredCount, run.Outcome)
	}

	if stats, err := svc.Stats(); err == nil {
		size := "unknown size"
		if info, err := os.Stat(stats.DBPath); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Printf("\n%s runs, %s beat rows in %s (%s)\n",
			humanize.Comma(stats.Runs), humanize.Comma(stats.Rows), stats.DBPath, size)
	}
}

func runID(args []string, usage string) string {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	pos := parseCommand(fs, args, usage, 1)
	if !utils.IsUUID(pos[0]) {
		fail("Invalid run ID: %s", pos[0])
	}
	return pos[0]
}

func handleShow(args []string) {
	id := runID(args, "show <run_id>")

	svc := mustService()
	defer svc.Close()

	run, err := svc.GetRun(id)
	if errors.Is(err, perfgrid.ErrNotFound) {
		fail("Run not found (ID: %s)", id)
	} else if err != nil {
		fail("Failed to get run: %v", err)
	}
	rows, err := svc.GetBeatRows(id)
	if err != nil {
		fail("Failed to get beat rows: %v", err)
	}
	ignored, err := svc.GetIgnored(id)
	if err != nil {
		fail("Failed to get ignored atoms: %v", err)
	}

	fmt.Printf("\n🎼 %s %s\n", run.PieceID, run.Kind)
	fmt.Printf("   ID:       %s\n", run.ID)
	fmt.Printf("   Source:   %s\n", run.Source)
	fmt.Printf("   Outcome:  %s after %d attempt(s)\n", run.Outcome, run.Attempts)
	fmt.Printf("   Created:  %s (%s)\n", run.CreatedAt.Format(time.RFC3339), humanize.Time(run.CreatedAt))
	fmt.Printf("   Atoms:    %s, %d ignored\n\n", humanize.Comma(int64(run.AtomCount)), len(ignored))

	fmt.Println("count,time,interpolated")
	for i, row := range rows {
		t := ""
		if row.Defined() {
			t = fmt.Sprintf("%g", row.Time)
		}
		fmt.Printf("%d,%s,%t\n", i, t, row.Interpolated)
	}
	for _, a := range ignored {
		fmt.Printf("# ignored tatum=%d time=%g\n", a.Tatum, a.Time)
	}
}

func handleDelete(args []string) {
	id := runID(args, "delete <run_id>")

	svc := mustService()
	defer svc.Close()

	run, err := svc.GetRun(id)
	if err != nil {
		fail("Run not found (ID: %s)", id)
	}
	if err := svc.DeleteRun(id); err != nil {
		fail("Failed to delete run: %v", err)
	}

	fmt.Printf("\n✅ Successfully deleted run:\n")
	fmt.Printf("   ID:    %s\n", run.ID)
	fmt.Printf("   Piece: %s\n", run.PieceID)
	fmt.Printf("   Kind:  %s\n", run.Kind)
	logger.GetLogger().Infof("Deleted run %s (%s %s)", run.ID, run.PieceID, run.Kind)
}
