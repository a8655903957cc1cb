// Package beatgrid turns a note-level score/performance alignment into a
// beat (or bar) time grid.
//
// The alignment atoms are fitted with an interpolating cubic spline which is
// evaluated at the reference grid ticks. Beats that come out anomalously close
// together are traced back to the atoms around them; those atoms are excised
// and the fit is retried a bounded number of times.
package beatgrid

import "errors"

var (
	ErrEmptyAlignment    = errors.New("alignment is empty")
	ErrInsufficientData  = errors.New("not enough distinct alignment ticks to fit a spline")
	ErrGridNotIncreasing = errors.New("reference grid is not strictly increasing")
	ErrInvalidBeatParams = errors.New("invalid beat parameters")
)

// Logger is the subset of the project logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}

func orNop(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}
