package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// -------------------- Cooldown scheduler --------------------

// maxCooldownRatio caps how much playback a single rest may buy. The
// instrument's thermal relay trips on sustained playback, so a configuration
// that rests too little for how long it plays is refused outright.
const maxCooldownRatio = 5.0

// cooldown forces an idle rest once cumulative wall-clock time since the
// last rest exceeds the threshold. The check runs at session boundaries
// only: a performance in progress is never cut short, so actual play time
// may overshoot the threshold slightly.
type cooldown struct {
	threshold time.Duration
	rest      time.Duration
	last      time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// newCooldown validates and builds the scheduler. Cooldown cannot be
// disabled: non-positive parameters are rejected, as is a play/rest ratio
// greater than 5-to-1.
func newCooldown(playMinutes, restMinutes float64) (*cooldown, error) {
	if playMinutes <= 0 || restMinutes <= 0 {
		return nil, errors.New("refusing to run without cooldown limits")
	}
	if playMinutes/restMinutes > maxCooldownRatio {
		return nil, fmt.Errorf("refusing cooldown ratio greater than 5-to-1: %g/%g", playMinutes, restMinutes)
	}
	c := &cooldown{
		threshold: time.Duration(playMinutes * float64(time.Minute)),
		rest:      time.Duration(restMinutes * float64(time.Minute)),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	c.last = c.now()
	return c, nil
}

// pause blocks for the configured rest if the playback window has been
// exceeded, then restarts the window. Called before each session starts.
func (c *cooldown) pause(ctx context.Context) error {
	if c.now().Sub(c.last) <= c.threshold {
		return ctx.Err()
	}
	logger.Info("cooldown: playback window exceeded, resting",
		"played", c.now().Sub(c.last).Round(time.Second),
		"rest", c.rest,
	)
	if err := c.sleep(ctx, c.rest); err != nil {
		return err
	}
	c.last = c.now()
	logger.Info("cooldown: rest finished")
	return nil
}
