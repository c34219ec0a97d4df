package main

import (
	"context"
	"testing"
	"time"
)

func TestNewCooldownRejectsBadConfigs(t *testing.T) {
	bad := []struct{ play, rest float64 }{
		{0, 3},  // disabled
		{15, 0}, // disabled
		{-1, 3}, // nonsense
		{16, 3}, // ratio 5.33
		{30, 5}, // ratio 6
	}
	for _, c := range bad {
		if _, err := newCooldown(c.play, c.rest); err == nil {
			t.Fatalf("newCooldown(%g, %g) accepted; want rejection", c.play, c.rest)
		}
	}
}

func TestNewCooldownAcceptsRatioAtLimit(t *testing.T) {
	if _, err := newCooldown(15, 3); err != nil {
		t.Fatalf("newCooldown(15, 3): %v", err)
	}
	if _, err := newCooldown(10, 10); err != nil {
		t.Fatalf("newCooldown(10, 10): %v", err)
	}
}

func TestCooldownPausesOnlyAfterThreshold(t *testing.T) {
	c, err := newCooldown(15, 3)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Unix(1000, 0)
	var slept []time.Duration
	c.now = func() time.Time { return now }
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}
	c.last = now

	ctx := context.Background()

	if err := c.pause(ctx); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 0 {
		t.Fatalf("rested with an empty playback window: %v", slept)
	}

	now = now.Add(10 * time.Minute)
	if err := c.pause(ctx); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 0 {
		t.Fatalf("rested below threshold: %v", slept)
	}

	now = now.Add(6 * time.Minute) // 16 minutes since last reset
	if err := c.pause(ctx); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 || slept[0] != 3*time.Minute {
		t.Fatalf("slept = %v; want one 3m rest", slept)
	}
	if !c.last.Equal(now) {
		t.Fatalf("window not reset after rest: last=%v now=%v", c.last, now)
	}

	// Immediately after a rest the window starts fresh.
	if err := c.pause(ctx); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 {
		t.Fatalf("rested twice in a row: %v", slept)
	}
}

func TestCooldownWindowNeverShorterThanThreshold(t *testing.T) {
	c, err := newCooldown(15, 3)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	var rests []struct{ start, end time.Time }
	c.now = func() time.Time { return now }
	c.sleep = func(_ context.Context, d time.Duration) error {
		start := now
		now = now.Add(d)
		rests = append(rests, struct{ start, end time.Time }{start, now})
		return nil
	}
	c.last = now

	// Simulate a batch of sessions of varying lengths.
	ctx := context.Background()
	for _, sessionMin := range []int{4, 9, 5, 2, 14, 3, 8, 16, 1, 7} {
		if err := c.pause(ctx); err != nil {
			t.Fatal(err)
		}
		now = now.Add(time.Duration(sessionMin) * time.Minute)
	}

	if len(rests) < 2 {
		t.Fatalf("expected multiple rests, got %d", len(rests))
	}
	for i := 1; i < len(rests); i++ {
		if gap := rests[i].start.Sub(rests[i-1].end); gap < 15*time.Minute {
			t.Fatalf("rest %d started after only %v since the previous rest; want >= 15m", i, gap)
		}
	}
}
