package score

import (
	"cmp"
	"fmt"
	"slices"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Reference holds the beat and bar positions of a reference MIDI, in seconds.
type Reference struct {
	Beats     []float64
	Downbeats []float64
}

type meter struct {
	tick       int64
	num, denom int
}

// beatTicks is one beat per denominator unit, or a dotted beat in compound
// x/8 meters (6/8, 9/8, 12/8).
func (m meter) beatTicks(resolution float64) float64 {
	beat := resolution * 4 / float64(m.denom)
	if m.denom == 8 && m.num > 3 && m.num%3 == 0 {
		beat *= 3
	}
	return beat
}

func (m meter) barTicks(resolution float64) float64 {
	return resolution * 4 * float64(m.num) / float64(m.denom)
}

// ReadReference reads beats and downbeats from a reference MIDI file.
func ReadReference(path string) (*Reference, error) {
	sm, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference MIDI %s: %w", path, err)
	}
	ref, err := ReferenceFromSMF(sm)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ref, nil
}

// ReferenceFromSMF lays beats and bars out from the time signatures of sm,
// starting at tick 0 and stopping before the last playable event.
func ReferenceFromSMF(sm *smf.SMF) (*Reference, error) {
	tm, err := newTempoMap(sm)
	if err != nil {
		return nil, err
	}

	meters := []meter{{num: 4, denom: 4}}
	var end int64
	for _, track := range sm.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			if ev.Message.IsPlayable() && tick > end {
				end = tick
			}
			var num, denom, cpt, dsqpq uint8
			if ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq) && num > 0 && denom > 0 {
				meters = append(meters, meter{tick: tick, num: int(num), denom: int(denom)})
			}
		}
	}

	// Several meters at one tick: the last one wins.
	slices.Reverse(meters)
	slices.SortStableFunc(meters, func(a, b meter) int { return cmp.Compare(a.tick, b.tick) })
	meters = slices.CompactFunc(meters, func(a, b meter) bool { return a.tick == b.tick })

	ref := &Reference{}
	for i, m := range meters {
		segEnd := float64(end)
		if i+1 < len(meters) {
			segEnd = min(segEnd, float64(meters[i+1].tick))
		}
		start := float64(m.tick)
		beat, bar := m.beatTicks(tm.resolution), m.barTicks(tm.resolution)
		for t := start; t < segEnd; t += beat {
			ref.Beats = append(ref.Beats, tm.Seconds(t))
		}
		for t := start; t < segEnd; t += bar {
			ref.Downbeats = append(ref.Downbeats, tm.Seconds(t))
		}
	}
	return ref, nil
}
