package main

import (
	"context"
	"fmt"
	"time"
)

// -------------------- Clock-synchronized player --------------------

// clockFunc reports monotonically increasing elapsed time. During a session
// this is the audio input stream's own clock, so MIDI dispatch stays phase
// aligned with the samples being recorded rather than with the wall clock.
type clockFunc func() time.Duration

// playPerformance sends every non-meta event of perf through send, pacing
// the stream against clock. An event is never dispatched before its
// scheduled instant; a dispatch that comes late (scheduler jitter, a slow
// device) is not compensated for.
//
// The wait is the only blocking point, and it watches ctx so an operator
// interrupt starts teardown immediately instead of after the full score.
func playPerformance(ctx context.Context, perf *performance, send func([]byte) error, clock clockFunc) error {
	start := clock()
	var inputTime time.Duration

	for _, ev := range perf.events {
		inputTime += ev.delta

		playbackTime := clock() - start
		if wait := inputTime - playbackTime; wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		if ev.meta {
			continue
		}
		if err := send(ev.data); err != nil {
			return fmt.Errorf("midi send: %w", err)
		}
	}
	return nil
}

// sleepCtx blocks for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
