package perfgrid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/himanishpuri/PerfGrid/internal/pieces"
	"github.com/himanishpuri/PerfGrid/internal/report"
	"github.com/himanishpuri/PerfGrid/pkg/logger"
	"github.com/himanishpuri/PerfGrid/pkg/models"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/alignment"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/beatgrid"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/score"
	"github.com/himanishpuri/PerfGrid/pkg/utils"
)

// Output suffixes, appended to the piece ID.
const (
	SuffixBeats    = "_beats.csv"
	SuffixBars     = "_bars.csv"
	SuffixTempo    = "_tempo.csv"
	SuffixSustain  = "_sustain.csv"
	SuffixVelocity = "_velocity.csv"
	SuffixSummary  = "_summary.json"
)

// gridService is the default implementation of the Service interface.
type gridService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Converter == nil {
		cfg.Converter = score.NewMuseScore(cfg.MuseScoreBin)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	stor := cfg.Storage
	if stor == nil && cfg.Persist {
		var err error
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &gridService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

func (s *gridService) options(log Logger) beatgrid.Options {
	return beatgrid.Options{
		MaxTries:      s.config.MaxTries,
		OutlierFactor: s.config.OutlierFactor,
		Logger:        log,
	}
}

// pieceLog prefixes log lines with the piece ID when the logger supports it.
func (s *gridService) pieceLog(pieceID string) Logger {
	if l, ok := s.log.(*logger.Logger); ok && pieceID != "" {
		return l.WithPrefix(pieceID)
	}
	return s.log
}

// ExtractGrid runs the correction loop over req.Atoms and stores the result.
func (s *gridService) ExtractGrid(ctx context.Context, req GridRequest) (*GridResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := s.pieceLog(req.PieceID)
	if req.Kind == "" {
		req.Kind = models.KindBeats
	}

	opts := s.options(log)
	res := &GridResult{Grid: req.Grid}
	if res.Grid == nil {
		opts.QuarterLength = req.QuarterLength
		opts.AnacrusisOffset = req.AnacrusisOffset
		opts.Guess = req.Guess
		opts.Prompt = req.Prompt
		grid, params, err := beatgrid.MakeReference(req.Atoms, opts)
		if err != nil {
			return nil, fmt.Errorf("building reference grid: %w", err)
		}
		res.Grid, res.Params = grid, &params
	}

	log.Infof("Estimating %d %s from %d alignment atoms", len(res.Grid), req.Kind, len(req.Atoms))
	out, err := beatgrid.GetBeats(req.Atoms, res.Grid, opts)
	if err != nil {
		return nil, err
	}
	res.Result = out
	res.Tempo = beatgrid.Tempo(out.Times())
	if !out.Converged() {
		log.Warnf("%s kept %d anomalies after %d attempts", req.Kind, len(out.Remaining), out.Attempts)
	}

	run := models.Run{
		PieceID:   req.PieceID,
		Kind:      req.Kind,
		Source:    models.SourceAligned,
		Attempts:  out.Attempts,
		Outcome:   string(out.Outcome),
		AtomCount: len(req.Atoms),
		CreatedAt: time.Now(),
	}
	if res.RunID, err = s.saveRun(run, out.Rows, out.Ignored, log); err != nil {
		return nil, err
	}

	res.Summary = report.Summary{
		RunID:     res.RunID,
		Piece:     req.PieceID,
		Kind:      string(req.Kind),
		Source:    string(models.SourceAligned),
		Outcome:   string(out.Outcome),
		Attempts:  out.Attempts,
		Atoms:     len(req.Atoms),
		Ignored:   len(out.Ignored),
		Tempo:     report.TempoSummary(res.Tempo),
		CreatedAt: run.CreatedAt,
	}
	res.Summary.CountRows(out.Rows)
	return res, nil
}

func (s *gridService) saveRun(run models.Run, rows []models.BeatRow, ignored []models.AlignmentAtom, log Logger) (string, error) {
	if s.storage == nil {
		return "", nil
	}
	id, err := s.storage.SaveRun(run, rows, ignored)
	if err != nil {
		return "", fmt.Errorf("failed to store run: %w", err)
	}
	log.Debugf("Stored %s run %s", run.Kind, id)
	return id, nil
}

func (s *gridService) aligner(workDir string) alignment.Aligner {
	if s.config.Aligner != nil {
		return s.config.Aligner
	}
	a := alignment.NewNakamuraAligner(s.config.AlignerBin, workDir)
	a.Logger = s.log
	return a
}

func (s *gridService) workDir(piece models.Piece) string {
	if s.config.WorkDir != "" {
		return filepath.Join(s.config.WorkDir, piece.ID)
	}
	return filepath.Join(piece.Folder, pieces.WorkFolder)
}

func (s *gridService) Align(ctx context.Context, refMIDI, perfMIDI string) ([]models.AlignmentAtom, error) {
	dir := s.config.WorkDir
	if dir == "" {
		dir = filepath.Dir(perfMIDI)
	}
	atoms, err := s.aligner(dir).Align(ctx, refMIDI, perfMIDI)
	if err != nil {
		return nil, fmt.Errorf("alignment failed: %w", err)
	}
	if len(atoms) == 0 {
		return nil, beatgrid.ErrEmptyAlignment
	}
	return atoms, nil
}

// ProcessPiece writes every output the piece's inputs allow. Outputs whose
// inputs are missing are skipped, not failed.
func (s *gridService) ProcessPiece(ctx context.Context, piece models.Piece) (*PieceReport, error) {
	log := s.pieceLog(piece.ID)
	rep := &PieceReport{PieceID: piece.ID}
	skip := func(output string, reason error) {
		rep.Skipped = append(rep.Skipped, fmt.Sprintf("%s: %v", output, reason))
		log.Infof("Skipping %s: %v", output, reason)
	}

	var beatTimes []float64
	var ref *score.Reference
	var atoms []models.AlignmentAtom

	// Alignment is only needed when a manual annotation is missing.
	if piece.ManualBeats == "" || piece.ManualBars == "" {
		var err error
		ref, atoms, err = s.alignPiece(ctx, piece, log)
		switch {
		case errors.Is(err, ErrMissingInput):
			if piece.ManualBeats == "" {
				skip("beats", err)
			}
			if piece.ManualBars == "" {
				skip("bars", err)
			}
		case err != nil:
			return rep, err
		}
	}

	for _, kind := range []models.GridKind{models.KindBeats, models.KindBars} {
		manual, suffix := piece.ManualBeats, SuffixBeats
		if kind == models.KindBars {
			manual, suffix = piece.ManualBars, SuffixBars
		}
		target := pieces.Target(piece, suffix)

		var times []float64
		switch {
		case manual != "":
			var err error
			if times, err = s.useManual(piece, kind, manual, target, rep, log); err != nil {
				return rep, err
			}
		case ref != nil:
			res, err := s.extractAligned(ctx, piece, kind, ref, atoms, target, rep)
			if err != nil {
				return rep, err
			}
			times = res.Result.Times()
			if kind == models.KindBeats {
				rep.Beats = res.Result
			} else {
				rep.Bars = res.Result
			}
		default:
			continue
		}
		if kind == models.KindBeats {
			beatTimes = times
		}
	}

	if beatTimes != nil {
		target := pieces.Target(piece, SuffixTempo)
		tempo := beatgrid.Tempo(beatTimes)
		if err := report.WriteFile(target, func(w io.Writer) error { return report.WriteTempo(w, tempo) }); err != nil {
			return rep, err
		}
		rep.Outputs = append(rep.Outputs, target)
	} else {
		skip("tempo", fmt.Errorf("%w: no beats", ErrMissingInput))
	}

	if piece.PerfMIDI == "" {
		skip("sustain and velocity", fmt.Errorf("%w: performance MIDI", ErrMissingInput))
		return rep, nil
	}
	perf, err := score.ReadPerformance(piece.PerfMIDI)
	if err != nil {
		return rep, err
	}
	sustainTarget := pieces.Target(piece, SuffixSustain)
	if err := report.WriteFile(sustainTarget, func(w io.Writer) error { return report.WriteSustain(w, perf.Sustain) }); err != nil {
		return rep, err
	}
	rep.Outputs = append(rep.Outputs, sustainTarget)

	if len(perf.Onsets) == 0 {
		log.Warnf("No note on event detected in %s", piece.PerfMIDI)
		return rep, nil
	}
	velocityTarget := pieces.Target(piece, SuffixVelocity)
	if err := report.WriteFile(velocityTarget, func(w io.Writer) error { return report.WriteVelocity(w, perf.Onsets) }); err != nil {
		return rep, err
	}
	rep.Outputs = append(rep.Outputs, velocityTarget)
	return rep, nil
}

// alignPiece converts the score to a reference MIDI and aligns the
// performance to it.
func (s *gridService) alignPiece(ctx context.Context, piece models.Piece, log Logger) (*score.Reference, []models.AlignmentAtom, error) {
	if piece.Score == "" {
		return nil, nil, fmt.Errorf("%w: score", ErrMissingInput)
	}
	if piece.PerfMIDI == "" {
		return nil, nil, fmt.Errorf("%w: performance MIDI", ErrMissingInput)
	}

	dir := s.workDir(piece)
	refMIDI := filepath.Join(dir, utils.Stem(piece.Score)+"_ref.mid")
	if err := s.config.Converter.ToMIDI(ctx, piece.Score, refMIDI); err != nil {
		return nil, nil, fmt.Errorf("converting score: %w", err)
	}
	ref, err := score.ReadReference(refMIDI)
	if err != nil {
		return nil, nil, err
	}

	log.Infof("Aligning %s to %s", filepath.Base(piece.PerfMIDI), filepath.Base(refMIDI))
	atoms, err := s.aligner(dir).Align(ctx, refMIDI, piece.PerfMIDI)
	if err != nil {
		return nil, nil, fmt.Errorf("alignment failed: %w", err)
	}
	return ref, atoms, nil
}

func (s *gridService) extractAligned(ctx context.Context, piece models.Piece, kind models.GridKind, ref *score.Reference, atoms []models.AlignmentAtom, target string, rep *PieceReport) (*GridResult, error) {
	seconds := ref.Beats
	if kind == models.KindBars {
		seconds = ref.Downbeats
	}
	grid, err := beatgrid.FromSeconds(seconds, s.config.TicksPerSecond)
	if err != nil {
		return nil, fmt.Errorf("%s reference: %w", kind, err)
	}

	res, err := s.ExtractGrid(ctx, GridRequest{PieceID: piece.ID, Kind: kind, Atoms: atoms, Grid: grid})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if err := report.WriteFile(target, func(w io.Writer) error { return report.WriteBeats(w, res.Result.Rows) }); err != nil {
		return nil, err
	}
	rep.Outputs = append(rep.Outputs, target)
	if res.RunID != "" {
		rep.Runs = append(rep.Runs, res.RunID)
	}

	if kind == models.KindBeats {
		summaryTarget := pieces.Target(piece, SuffixSummary)
		if err := report.WriteFile(summaryTarget, func(w io.Writer) error { return report.WriteJSON(w, res.Summary) }); err != nil {
			return nil, err
		}
		rep.Outputs = append(rep.Outputs, summaryTarget)
	}
	return res, nil
}

// useManual copies an authoritative annotation to target and records it.
func (s *gridService) useManual(piece models.Piece, kind models.GridKind, manual, target string, rep *PieceReport, log Logger) ([]float64, error) {
	log.Infof("Using authoritative %s annotation %s", kind, filepath.Base(manual))
	if err := utils.CopyFile(manual, target); err != nil {
		return nil, err
	}
	rep.Outputs = append(rep.Outputs, target)

	times, err := report.ReadBeatTimesFile(manual)
	if err != nil {
		return nil, err
	}
	rows := make([]models.BeatRow, len(times))
	for i, t := range times {
		rows[i].Time = t
	}
	run := models.Run{
		PieceID:   piece.ID,
		Kind:      kind,
		Source:    models.SourceManual,
		Outcome:   string(beatgrid.OutcomeConverged),
		CreatedAt: time.Now(),
	}
	id, err := s.saveRun(run, rows, nil, log)
	if err != nil {
		return nil, err
	}
	if id != "" {
		rep.Runs = append(rep.Runs, id)
	}
	return times, nil
}

// ProcessBatch processes pieces on a bounded pool of workers. Each piece runs
// independently; a failure is reported on its PieceReport only.
func (s *gridService) ProcessBatch(ctx context.Context, list []models.Piece) []PieceReport {
	reports := make([]PieceReport, len(list))
	wg := sizedwaitgroup.New(s.config.Concurrency)

	for i, piece := range list {
		wg.Add()
		go func(i int, piece models.Piece) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				reports[i] = PieceReport{PieceID: piece.ID, Err: err}
				return
			}
			rep, err := s.ProcessPiece(ctx, piece)
			if rep == nil {
				rep = &PieceReport{PieceID: piece.ID}
			}
			if err != nil {
				rep.Err = err
				s.pieceLog(piece.ID).Errorf("Processing failed: %v", err)
			}
			reports[i] = *rep
		}(i, piece)
	}
	wg.Wait()
	return reports
}

func (s *gridService) GetRun(id string) (*models.Run, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	return s.storage.GetRun(id)
}

func (s *gridService) ListRuns(pieceID string) ([]models.Run, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	return s.storage.ListRuns(pieceID)
}

func (s *gridService) GetBeatRows(id string) ([]models.BeatRow, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	return s.storage.GetBeatRows(id)
}

func (s *gridService) GetIgnored(id string) ([]models.AlignmentAtom, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	return s.storage.GetIgnored(id)
}

func (s *gridService) DeleteRun(id string) error {
	if s.storage == nil {
		return ErrNoStorage
	}
	return s.storage.DeleteRun(id)
}

func (s *gridService) Stats() (*Stats, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	runs, rows, err := s.storage.Counts()
	if err != nil {
		return nil, err
	}
	return &Stats{DBPath: s.config.DBPath, Runs: runs, Rows: rows}, nil
}

// Close releases all resources held by the service.
func (s *gridService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
