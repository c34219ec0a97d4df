package main

import (
	"math"

	"github.com/go-audio/audio"
)

const (
	wavBitDepth    = 24
	wavAudioFormat = 1 // PCM

	pcm24Max = 1<<23 - 1
	pcm24Min = -(1 << 23)
)

// -------------------- Sample encoding --------------------

// interleave24 converts one channel-major float32 block into a single
// interleaved 24-bit sample slice, frame by frame.
func interleave24(block [][]float32) []int {
	if len(block) == 0 {
		return nil
	}
	frames := len(block[0])
	out := make([]int, 0, frames*len(block))
	for i := 0; i < frames; i++ {
		for _, ch := range block {
			out = append(out, clamp24(ch[i]))
		}
	}
	return out
}

// clamp24 scales a [-1, 1] float sample to 24-bit PCM, saturating rather
// than wrapping on out-of-range input.
func clamp24(s float32) int {
	v := int(math.Round(float64(s) * pcm24Max))
	if v > pcm24Max {
		return pcm24Max
	}
	if v < pcm24Min {
		return pcm24Min
	}
	return v
}

// blockBuffer wraps one capture block as a WAV-encoder buffer.
func blockBuffer(block [][]float32, sampleRate int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: len(block),
			SampleRate:  sampleRate,
		},
		SourceBitDepth: wavBitDepth,
		Data:           interleave24(block),
	}
}
