package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// -------------------- Capture sink --------------------

// captureSink accumulates audio blocks pushed by the input stream callback.
// The callback is the only writer; the blocks are read back only after the
// stream has been stopped, so a single mutex around the append is enough.
type captureSink struct {
	mu        sync.Mutex
	blocks    [][][]float32
	frames    int
	overflows int
}

func (s *captureSink) push(block [][]float32) {
	s.mu.Lock()
	s.blocks = append(s.blocks, block)
	if len(block) > 0 {
		s.frames += len(block[0])
	}
	s.mu.Unlock()
}

func (s *captureSink) noteOverflow() {
	s.mu.Lock()
	s.overflows++
	s.mu.Unlock()
}

func (s *captureSink) snapshot() (blocks [][][]float32, frames, overflows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks, s.frames, s.overflows
}

// -------------------- Input stream --------------------

// audioStream is the session's handle on the audio input device. Elapsed is
// the stream's own clock and drives the player; Blocks is only meaningful
// after Stop.
type audioStream interface {
	Start() error
	Stop() error
	Close() error
	Elapsed() time.Duration
	Blocks() [][][]float32
	Frames() int
	Overflows() int
}

type paStream struct {
	stream *portaudio.Stream
	sink   *captureSink
}

// openInputStream opens the audio input device at index with the session's
// sample rate, binding its delivery callback to a fresh capture sink. When a
// channel map is set, the stream opens enough device channels to cover the
// highest mapped index and the sink keeps only the mapped ones.
func openInputStream(index, sampleRate, numChannels int, chmap []int) (audioStream, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: list devices: %w", err)
	}
	if index < 0 || index >= len(devs) {
		return nil, fmt.Errorf("audio: device index %d out of range (%d devices)", index, len(devs))
	}
	dev := devs[index]

	need := openChannelCount(numChannels, chmap)
	if dev.MaxInputChannels < need {
		return nil, fmt.Errorf("audio: device %q has %d input channels, need %d", dev.Name, dev.MaxInputChannels, need)
	}

	sink := &captureSink{}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: need,
			Latency:  dev.DefaultHighInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}

	stream, err := portaudio.OpenStream(params, func(in [][]float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		// Runs on the audio subsystem's realtime thread: copy and get out.
		if flags&portaudio.InputOverflow != 0 {
			sink.noteOverflow()
		}
		sink.push(copyBlock(in, numChannels, chmap))
	})
	if err != nil {
		return nil, fmt.Errorf("audio: open stream on %q: %w", dev.Name, err)
	}

	logger.Info("audio: input stream opened",
		"device", dev.Name,
		"sample_rate", sampleRate,
		"channels", numChannels,
		"device_channels", need,
	)
	return &paStream{stream: stream, sink: sink}, nil
}

func (p *paStream) Start() error { return p.stream.Start() }
func (p *paStream) Stop() error  { return p.stream.Stop() }
func (p *paStream) Close() error { return p.stream.Close() }

// Elapsed returns the stream's own elapsed-time reading.
func (p *paStream) Elapsed() time.Duration { return p.stream.Time() }

func (p *paStream) Blocks() [][][]float32 {
	blocks, _, _ := p.sink.snapshot()
	return blocks
}

func (p *paStream) Frames() int {
	_, frames, _ := p.sink.snapshot()
	return frames
}

func (p *paStream) Overflows() int {
	_, _, overflows := p.sink.snapshot()
	return overflows
}
