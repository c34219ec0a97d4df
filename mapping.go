package main

import (
	"fmt"
	"strconv"
	"strings"
)

// -------------------- Channel mapping --------------------

// parseChannelMap parses a comma-separated list of input channel indices.
// An empty string means "record the first N device channels".
func parseChannelMap(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("channel index %q: %w", p, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("channel index %d is negative", v)
		}
		out = append(out, v)
	}
	return out, nil
}

// validateChannelMap enforces the one hard constraint on a channel map: its
// length must equal the recorded channel count. A nil map is always valid.
func validateChannelMap(numChannels int, chmap []int) error {
	if numChannels < 1 {
		return fmt.Errorf("num_channels (%d) must be at least 1", numChannels)
	}
	if chmap == nil {
		return nil
	}
	if len(chmap) != numChannels {
		return fmt.Errorf("num_channels (%d) does not equal len(channel_map) (%d)", numChannels, len(chmap))
	}
	return nil
}

// openChannelCount is how many device channels the input stream must open so
// every mapped channel is delivered.
func openChannelCount(numChannels int, chmap []int) int {
	if chmap == nil {
		return numChannels
	}
	max := 0
	for _, c := range chmap {
		if c > max {
			max = c
		}
	}
	return max + 1
}

// copyBlock copies the recorded subset of one delivered channel-major block.
// The audio subsystem reuses its buffers between callbacks, so the samples
// must be copied before the callback returns.
func copyBlock(in [][]float32, numChannels int, chmap []int) [][]float32 {
	out := make([][]float32, numChannels)
	for i := range out {
		src := i
		if chmap != nil {
			src = chmap[i]
		}
		ch := make([]float32, len(in[src]))
		copy(ch, in[src])
		out[i] = ch
	}
	return out
}
