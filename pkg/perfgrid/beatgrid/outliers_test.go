package beatgrid

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

func rowsFromIBIs(ibis ...float64) []models.BeatRow {
	rows := []models.BeatRow{{Time: 0}}
	for _, d := range ibis {
		rows = append(rows, models.BeatRow{Time: rows[len(rows)-1].Time + d})
	}
	return rows
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debugf(format string, args ...any) { r.add("DEBUG", format) }
func (r *recordingLogger) Infof(format string, args ...any)  { r.add("INFO", format) }
func (r *recordingLogger) Warnf(format string, args ...any)  { r.add("WARN", format) }

func (r *recordingLogger) add(level, format string) {
	r.lines = append(r.lines, level+" "+format)
}

func (r *recordingLogger) count(level string) int {
	n := 0
	for _, l := range r.lines {
		if strings.HasPrefix(l, level+" ") {
			n++
		}
	}
	return n
}

func TestFindOutliers(t *testing.T) {
	tests := []struct {
		name string
		rows []models.BeatRow
		want []Anomaly
	}{
		{"steady", rowsFromIBIs(0.5, 0.5, 0.5, 0.5), nil},
		{"short interval", rowsFromIBIs(1.0, 1.0, 0.1, 1.0), []Anomaly{{2, 3}}},
		{"long interval ignored", rowsFromIBIs(1.0, 1.0, 0.1, 1.0, 2.0), []Anomaly{{2, 3}}},
		{"negative interval", rowsFromIBIs(0.52, 0.46, 1.52, -0.55), []Anomaly{{3, 4}}},
		{"single row", rowsFromIBIs(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindOutliers(tt.rows, DefaultOutlierFactor, nil)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFindOutliersSkipsUndefinedBeats(t *testing.T) {
	rows := []models.BeatRow{
		{Time: math.NaN()},
		{Time: 1.0},
		{Time: 2.0},
		{Time: 2.05},
		{Time: 3.0},
		{Time: math.NaN()},
	}

	log := &recordingLogger{}
	got := FindOutliers(rows, DefaultOutlierFactor, log)

	if !reflect.DeepEqual(got, []Anomaly{{2, 3}}) {
		t.Errorf("expected only the 2-3 interval, got %v", got)
	}
	if log.count("DEBUG") != 1 {
		t.Errorf("expected one debug line per anomaly, got %v", log.lines)
	}
}

func TestFindOutliersFactor(t *testing.T) {
	rows := rowsFromIBIs(1.0, 1.0, 0.4, 1.0)

	if got := FindOutliers(rows, 4, nil); got != nil {
		t.Errorf("factor 4 should not flag 0.4s against a 0.85s mean, got %v", got)
	}
	if got := FindOutliers(rows, 2, nil); !reflect.DeepEqual(got, []Anomaly{{2, 3}}) {
		t.Errorf("factor 2 should flag the short interval, got %v", got)
	}
}
