package perfgrid

import (
	"runtime"

	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/alignment"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/beatgrid"
	"github.com/himanishpuri/PerfGrid/pkg/perfgrid/score"
)

type Config struct {
	DBPath         string
	WorkDir        string // Intermediate files; empty to work inside each piece folder
	AlignerBin     string // Folder holding the alignment tools
	MuseScoreBin   string
	MaxTries       int
	OutlierFactor  float64
	TicksPerSecond float64
	Concurrency    int
	Persist        bool
	Logger         Logger
	Storage        Storage
	Aligner        alignment.Aligner
	Converter      score.Converter
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

func WithAlignerBin(dir string) Option {
	return func(c *Config) {
		c.AlignerBin = dir
	}
}

func WithMuseScore(bin string) Option {
	return func(c *Config) {
		c.MuseScoreBin = bin
	}
}

func WithMaxTries(n int) Option {
	return func(c *Config) {
		c.MaxTries = n
	}
}

func WithOutlierFactor(f float64) Option {
	return func(c *Config) {
		c.OutlierFactor = f
	}
}

// WithTicksPerSecond sets the scale between reference MIDI seconds and the
// aligner's score ticks.
func WithTicksPerSecond(tps float64) Option {
	return func(c *Config) {
		c.TicksPerSecond = tps
	}
}

// WithConcurrency bounds the number of pieces processed at once.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithPersist controls whether extractions are stored. Without persistence
// no database is opened.
func WithPersist(persist bool) Option {
	return func(c *Config) {
		c.Persist = persist
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithAligner(a alignment.Aligner) Option {
	return func(c *Config) {
		c.Aligner = a
	}
}

func WithConverter(conv score.Converter) Option {
	return func(c *Config) {
		c.Converter = conv
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:         "perfgrid.sqlite3",
		AlignerBin:     "bin",
		MuseScoreBin:   score.DefaultMuseScore,
		MaxTries:       beatgrid.DefaultMaxTries,
		OutlierFactor:  beatgrid.DefaultOutlierFactor,
		TicksPerSecond: beatgrid.DefaultTicksPerSecond,
		Concurrency:    runtime.NumCPU(),
		Persist:        true,
	}
}
