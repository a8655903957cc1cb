package score

import (
	"cmp"
	"errors"
	"slices"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

var ErrUnsupportedTimeFormat = errors.New("only metric (ticks per quarter) MIDI time formats are supported")

const defaultBPM = 120.0

type tempoChange struct {
	tick    float64
	seconds float64
	bpm     float64
}

// tempoMap converts absolute ticks to seconds, honouring every tempo change
// in any track.
type tempoMap struct {
	resolution float64 // Ticks per quarter note
	changes    []tempoChange
}

func newTempoMap(sm *smf.SMF) (*tempoMap, error) {
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok || mt == 0 {
		return nil, ErrUnsupportedTimeFormat
	}

	var raw []tempoChange
	for _, track := range sm.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				raw = append(raw, tempoChange{tick: float64(tick), bpm: bpm})
			}
		}
	}
	slices.SortStableFunc(raw, func(a, b tempoChange) int { return cmp.Compare(a.tick, b.tick) })

	m := &tempoMap{
		resolution: float64(mt),
		changes:    []tempoChange{{bpm: defaultBPM}},
	}
	for _, c := range raw {
		last := m.changes[len(m.changes)-1]
		if c.tick == last.tick {
			m.changes[len(m.changes)-1].bpm = c.bpm
			continue
		}
		c.seconds = last.seconds + m.span(last.bpm, c.tick-last.tick)
		m.changes = append(m.changes, c)
	}
	return m, nil
}

func (m *tempoMap) span(bpm, ticks float64) float64 {
	return ticks / m.resolution * 60 / bpm
}

// Seconds returns the time of an absolute tick.
func (m *tempoMap) Seconds(tick float64) float64 {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].tick > tick }) - 1
	if i < 0 {
		i = 0
	}
	c := m.changes[i]
	return c.seconds + m.span(c.bpm, tick-c.tick)
}
