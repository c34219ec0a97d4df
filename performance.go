package main

import (
	"fmt"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

// -------------------- Performance source --------------------

// timedEvent is one MIDI event of a performance. delta is the time since the
// previous event in the merged, time-ordered stream. Meta events are kept for
// timing only and are never sent to the output device.
type timedEvent struct {
	delta time.Duration
	data  []byte
	meta  bool
}

// performance is an immutable, time-ordered MIDI event sequence parsed from a
// standard MIDI file. Tempo changes are already folded into the deltas.
type performance struct {
	events []timedEvent
	total  time.Duration
}

// loadPerformance parses the SMF file at path. Events from all tracks are
// merged into a single stream ordered by absolute time.
func loadPerformance(path string) (*performance, error) {
	type absEvent struct {
		at   time.Duration
		data []byte
		meta bool
	}

	var evs []absEvent
	rd := smf.ReadTracks(path)
	rd.Do(func(ev smf.TrackEvent) {
		evs = append(evs, absEvent{
			at:   time.Duration(ev.AbsMicroSeconds) * time.Microsecond,
			data: []byte(ev.Message),
			meta: ev.Message.IsMeta(),
		})
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("midi file %s: %w", path, err)
	}

	// Format-1 files deliver events track by track; restore playback order.
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].at < evs[j].at })

	p := &performance{events: make([]timedEvent, 0, len(evs))}
	var prev time.Duration
	for _, e := range evs {
		p.events = append(p.events, timedEvent{delta: e.at - prev, data: e.data, meta: e.meta})
		prev = e.at
	}
	p.total = prev
	return p, nil
}

// playable counts the events that will actually be sent to the device.
func (p *performance) playable() int {
	n := 0
	for _, e := range p.events {
		if !e.meta {
			n++
		}
	}
	return n
}
