package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// -------------------- Capture session --------------------

// sessionDescriptor fully describes one playback-plus-recording session.
// It is built by the batch runner, consumed by exactly one session, and
// never shared: the MIDI output and the audio input are singleton physical
// devices, so sessions run strictly one at a time.
type sessionDescriptor struct {
	sourcePath  string
	destPath    string
	sampleRate  int
	numChannels int
	channelMap  []int
	tailMargin  time.Duration
}

// openers abstracts the two physical devices a session acquires. Production
// code wires the rtmidi and portaudio implementations; tests substitute
// fakes.
type openers struct {
	midi  func() (outPort, error)
	audio func(desc sessionDescriptor) (audioStream, error)
}

func deviceOpeners(portName string, audioDevice int) openers {
	return openers{
		midi: func() (outPort, error) {
			return openOutPort(portName)
		},
		audio: func(desc sessionDescriptor) (audioStream, error) {
			return openInputStream(audioDevice, desc.sampleRate, desc.numChannels, desc.channelMap)
		},
	}
}

// captureOne runs a single end-to-end session: parse the source, open the
// MIDI output, the destination WAV file and the audio input stream, play the
// score against the stream's clock, hold the stream open for the tail
// margin, then commit the buffered audio to disk.
//
// On any failure after the destination file has been created, the partial
// artifact is deleted: its existence is the batch runner's only resume
// signal, so a half-written file must never survive. On interruption the
// MIDI output is additionally reset so no notes stay held down.
func captureOne(ctx context.Context, desc sessionDescriptor, open openers) error {
	perf, err := loadPerformance(desc.sourcePath)
	if err != nil {
		return err
	}

	out, err := open.midi()
	if err != nil {
		return fmt.Errorf("open midi output: %w", err)
	}
	defer out.Close()

	f, err := os.Create(desc.destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", desc.destPath, err)
	}
	enc := wav.NewEncoder(f, desc.sampleRate, wavBitDepth, desc.numChannels, wavAudioFormat)

	committed := false
	interrupted := false
	defer func() {
		if committed {
			return
		}
		// Teardown order is fixed: file closed, artifact deleted, then the
		// MIDI reset — which must happen even if the audio side misbehaved.
		_ = f.Close()
		if rmErr := os.Remove(desc.destPath); rmErr != nil {
			logger.Error("session: removing partial output failed", "dest", desc.destPath, "err", rmErr)
		} else {
			logger.Info("session: partial output removed", "dest", desc.destPath)
		}
		if interrupted {
			if resetErr := out.Reset(); resetErr != nil {
				logger.Error("session: midi reset failed", "err", resetErr)
			}
		}
	}()

	stream, err := open.audio(desc)
	if err != nil {
		return fmt.Errorf("open audio input: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start audio input: %w", err)
	}

	logger.Info("session: playing",
		"source", desc.sourcePath,
		"events", perf.playable(),
		"score_duration", perf.total.Round(time.Millisecond),
	)

	err = playPerformance(ctx, perf, out.Send, stream.Elapsed)
	if err == nil {
		// Keep recording past the last event to catch the acoustic decay.
		err = sleepCtx(ctx, desc.tailMargin)
	}
	if err != nil {
		interrupted = errors.Is(err, context.Canceled)
		_ = stream.Stop()
		return err
	}

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("stop audio input: %w", err)
	}

	for _, block := range stream.Blocks() {
		if err := enc.Write(blockBuffer(block, desc.sampleRate)); err != nil {
			return fmt.Errorf("write %s: %w", desc.destPath, err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", desc.destPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", desc.destPath, err)
	}
	committed = true

	if n := stream.Overflows(); n > 0 {
		logger.Warn("session: input overflows during capture", "count", n)
	}
	logger.Info("session: committed",
		"dest", desc.destPath,
		"frames", stream.Frames(),
		"blocks", len(stream.Blocks()),
	)
	return nil
}
