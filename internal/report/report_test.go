package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

func TestWriteBeats(t *testing.T) {
	rows := []models.BeatRow{
		{Time: math.NaN(), Interpolated: true},
		{Time: 0.52},
		{Time: 1.4375, Interpolated: true},
	}

	var buf bytes.Buffer
	if err := WriteBeats(&buf, rows); err != nil {
		t.Fatalf("WriteBeats failed: %v", err)
	}

	want := "count,time,interpolated\n0,,true\n1,0.52,false\n2,1.4375,true\n"
	if buf.String() != want {
		t.Errorf("expected\n%s\ngot\n%s", want, buf.String())
	}
}

func TestBeatsRoundTripThroughReadBeatTimes(t *testing.T) {
	rows := []models.BeatRow{{Time: 0.5}, {Time: math.NaN()}, {Time: 1.75}}

	var buf bytes.Buffer
	if err := WriteBeats(&buf, rows); err != nil {
		t.Fatal(err)
	}
	times, err := ReadBeatTimes(&buf)
	if err != nil {
		t.Fatalf("ReadBeatTimes failed: %v", err)
	}

	if len(times) != 3 || times[0] != 0.5 || !math.IsNaN(times[1]) || times[2] != 1.75 {
		t.Errorf("unexpected times %v", times)
	}
}

func TestReadBeatTimesManualAnnotation(t *testing.T) {
	in := "Beats, Label\n0.41,1.1\n0.98,1.2\n"

	times, err := ReadBeatTimes(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadBeatTimes failed: %v", err)
	}
	if len(times) != 2 || times[0] != 0.41 || times[1] != 0.98 {
		t.Errorf("unexpected times %v", times)
	}
}

func TestReadBeatTimesErrors(t *testing.T) {
	if _, err := ReadBeatTimes(strings.NewReader("onset,label\n1,a\n")); !errors.Is(err, ErrNoTimeColumn) {
		t.Errorf("expected ErrNoTimeColumn, got %v", err)
	}
	if _, err := ReadBeatTimes(strings.NewReader("time\nsoon\n")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestWriteTempo(t *testing.T) {
	points := []models.TempoPoint{{Count: 1, Time: 1.5, Midpoint: 1.25, Tempo: 120}}

	var buf bytes.Buffer
	if err := WriteTempo(&buf, points); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "count,time,midpoint,tempo\n1,1.5,1.25,120\n" {
		t.Errorf("unexpected tempo CSV %q", buf.String())
	}
}

func TestWritePerformanceFeatures(t *testing.T) {
	var sustain, velocity, noteTempo bytes.Buffer

	if err := WriteSustain(&sustain, []models.SustainEvent{{Time: 0.5, Value: 127}}); err != nil {
		t.Fatal(err)
	}
	if err := WriteVelocity(&velocity, []models.OnsetVelocity{{Time: 1, Pitch: 64, Velocity: 50}}); err != nil {
		t.Fatal(err)
	}
	if err := WriteNoteTempo(&noteTempo, []models.NoteTempo{{Tatum: 480, Time: 0.52, Tempo: 0.98}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		got, want string
	}{
		{sustain.String(), "time,sustain\n0.5,127\n"},
		{velocity.String(), "time,pitch,velocity\n1,64,50\n"},
		{noteTempo.String(), "tatum,time,tempo\n480,0.52,0.98\n"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, tt.got)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ballade_beats.csv")

	err := WriteFile(path, func(w io.Writer) error {
		return WriteBeats(w, []models.BeatRow{{Time: 0}})
	})
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	times, err := ReadBeatTimesFile(path)
	if err != nil || len(times) != 1 {
		t.Errorf("unexpected read back %v, %v", times, err)
	}
}

func TestWriteFileFailureLeavesNoTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.csv")

	err := WriteFile(path, func(io.Writer) error { return errors.New("disk on fire") })
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("target should not exist after a failed write")
	}
}

func TestSummary(t *testing.T) {
	s := Summary{Piece: "ballade", Kind: "beats"}
	s.CountRows([]models.BeatRow{{Time: math.NaN(), Interpolated: true}, {Time: 1}, {Time: 2, Interpolated: true}})
	s.Tempo = TempoSummary([]models.TempoPoint{{Tempo: 60}, {Tempo: 120}, {Tempo: math.Inf(1)}})

	if s.Rows != 3 || s.Interpolated != 2 || s.Undefined != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.Tempo == nil || s.Tempo.Mean != 90 || s.Tempo.Min != 60 || s.Tempo.Max != 120 {
		t.Errorf("unexpected tempo stats %+v", s.Tempo)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["piece"] != "ballade" || decoded["undefined"] != float64(1) {
		t.Errorf("unexpected JSON %s", buf.String())
	}

	if TempoSummary(nil) != nil {
		t.Error("no tempo should give no stats")
	}
}
