// Package pieces finds the input files of pieces laid out one folder per piece.
package pieces

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// WorkFolder is never treated as a piece.
const WorkFolder = "tmp"

type Logger interface {
	Warnf(format string, args ...any)
}

type inputKind struct {
	name     string
	suffixes []string
	exclude  []string
	required bool
	set      func(p *models.Piece, path string)
}

var inputKinds = []inputKind{
	{"score", []string{".mscz", ".xml", ".mxl"}, nil, true, func(p *models.Piece, path string) { p.Score = path }},
	{"performance MIDI", []string{".mid"}, []string{"_ref.mid", "_perf.mid"}, true, func(p *models.Piece, path string) { p.PerfMIDI = path }},
	{"performance audio", []string{".wav"}, nil, true, func(p *models.Piece, path string) { p.PerfAudio = path }},
	{"manual beats", []string{"_beats_manual.csv"}, nil, false, func(p *models.Piece, path string) { p.ManualBeats = path }},
	{"manual bars", []string{"_bars_manual.csv"}, nil, false, func(p *models.Piece, path string) { p.ManualBars = path }},
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Discover returns one piece per sub-folder of base, sorted by folder name.
// Missing required inputs and ambiguous matches are warned about; the first
// match in name order is used.
func Discover(base string, log Logger) ([]models.Piece, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", base, err)
	}

	var pieces []models.Piece
	for _, e := range entries {
		if !e.IsDir() || e.Name() == WorkFolder || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p, err := Load(filepath.Join(base, e.Name()), log)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, p)
	}
	return pieces, nil
}

// Load collects the inputs of a single piece folder.
func Load(folder string, log Logger) (models.Piece, error) {
	piece := models.Piece{ID: filepath.Base(folder), Folder: folder}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return piece, fmt.Errorf("failed to list %s: %w", folder, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, kind := range inputKinds {
		var found []string
		for _, name := range names {
			if hasAnySuffix(name, kind.suffixes) && !hasAnySuffix(name, kind.exclude) {
				found = append(found, name)
			}
		}
		switch {
		case len(found) == 0:
			if kind.required && log != nil {
				log.Warnf("Found no %s in %s (expected %s). Some outputs will be skipped.",
					kind.name, folder, strings.Join(kind.suffixes, ", "))
			}
			continue
		case len(found) > 1 && log != nil:
			log.Warnf("Found more than one %s in %s (using %s)", kind.name, folder, found[0])
		}
		kind.set(&piece, filepath.Join(folder, found[0]))
	}
	return piece, nil
}

// Target names an output of piece: <folder>/<id><suffix>.
func Target(piece models.Piece, suffix string) string {
	return filepath.Join(piece.Folder, piece.ID+suffix)
}
