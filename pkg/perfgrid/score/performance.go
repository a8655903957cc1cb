package score

import (
	"cmp"
	"fmt"
	"slices"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/PerfGrid/pkg/models"
)

// SustainController is the MIDI controller number of the sustain pedal.
const SustainController = 64

// Performance holds the pedal and onset features of a performance MIDI.
type Performance struct {
	Sustain []models.SustainEvent
	Onsets  []models.OnsetVelocity
}

type absEvent struct {
	tick int64
	msg  smf.Message
}

// ReadPerformance reads sustain pedal events and note onsets with their
// velocities from a performance MIDI file. Times are in seconds.
func ReadPerformance(path string) (*Performance, error) {
	sm, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read performance MIDI %s: %w", path, err)
	}
	perf, err := PerformanceFromSMF(sm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return perf, nil
}

func PerformanceFromSMF(sm *smf.SMF) (*Performance, error) {
	tm, err := newTempoMap(sm)
	if err != nil {
		return nil, err
	}

	var events []absEvent
	for _, track := range sm.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			events = append(events, absEvent{tick: tick, msg: ev.Message})
		}
	}
	slices.SortStableFunc(events, func(a, b absEvent) int { return cmp.Compare(a.tick, b.tick) })

	perf := &Performance{}
	for _, ev := range events {
		var ch, key, vel, cc, val uint8
		switch {
		case ev.msg.GetNoteStart(&ch, &key, &vel):
			perf.Onsets = append(perf.Onsets, models.OnsetVelocity{
				Time:     tm.Seconds(float64(ev.tick)),
				Pitch:    int(key),
				Velocity: int(vel),
			})
		case ev.msg.GetControlChange(&ch, &cc, &val) && cc == SustainController:
			perf.Sustain = append(perf.Sustain, models.SustainEvent{
				Time:  tm.Seconds(float64(ev.tick)),
				Value: int(val),
			})
		}
	}
	return perf, nil
}
