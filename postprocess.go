package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// -------------------- Postprocess --------------------

// The raw takes carry a fixed MIDI-to-audio delay (the instrument's
// actuation latency), trimmed off the front here.
const defaultOffsetMS = 507

// defaultChannelWeights is the mono mixdown for the house six-channel rig:
// mics on channels 2-3, room on 4-5, nothing useful on 0-1.
const defaultChannelWeights = "0,0,0.8,0.8,0.1,0.1"

type postprocessConfig struct {
	audioRoot  string
	outputRoot string
	sampleRate int
	offsetMS   int

	channelWeights []float64
	stereo         bool
	stereoC0       []float64
	stereoC1       []float64

	overwrite bool
}

// parseWeights parses a comma-separated float list; empty input yields nil.
func parseWeights(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", p, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func weightExpr(weights []float64) string {
	terms := make([]string, len(weights))
	for i, w := range weights {
		terms[i] = strconv.FormatFloat(w, 'g', -1, 64) + "*c" + strconv.Itoa(i)
	}
	return strings.Join(terms, "+")
}

// panFilter builds the ffmpeg pan filter-graph expression for the configured
// mixdown. Weight lists are validated here, never left for ffmpeg to reject
// mid-batch.
func panFilter(cfg postprocessConfig) (string, error) {
	if cfg.stereo {
		if len(cfg.stereoC0) == 0 {
			return "", errors.New("stereo output needs -stereo-c0-weights")
		}
		if len(cfg.stereoC1) == 0 {
			return "", errors.New("stereo output needs -stereo-c1-weights")
		}
		return fmt.Sprintf("pan=stereo|c0=%s|c1=%s", weightExpr(cfg.stereoC0), weightExpr(cfg.stereoC1)), nil
	}
	if len(cfg.channelWeights) == 0 {
		return "", errors.New("mono mixdown needs -weights")
	}
	return "pan=mono|c0=" + weightExpr(cfg.channelWeights), nil
}

func ffmpegArgs(in, out, filter string, cfg postprocessConfig) []string {
	offsetSec := float64(cfg.offsetMS) / 1000.0
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-ss", strconv.FormatFloat(offsetSec, 'g', -1, 64),
		"-i", in,
		"-af", filter,
		"-ar", strconv.Itoa(cfg.sampleRate),
		out,
	}
}

// runPostprocess transcodes every WAV under audioRoot into the mirrored path
// under outputRoot, skipping files whose output already exists unless
// overwrite is set. The transcode itself is delegated to ffmpeg.
func runPostprocess(ctx context.Context, cfg postprocessConfig) error {
	filter, err := panFilter(cfg)
	if err != nil {
		return err
	}

	var paths []string
	err = filepath.WalkDir(cfg.audioRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".wav") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", cfg.audioRoot, err)
	}
	logger.Info("postprocess: files discovered", "count", len(paths), "filter", filter)

	bar := progressbar.Default(int64(len(paths)))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(cfg.audioRoot, p)
		if err != nil {
			return err
		}
		outPath := filepath.Join(cfg.outputRoot, rel)

		if !cfg.overwrite {
			if _, statErr := os.Stat(outPath); statErr == nil {
				logger.Info("postprocess: output exists, skipping", "dest", outPath)
				_ = bar.Add(1)
				continue
			}
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("mkdir for %s: %w", outPath, err)
		}

		bar.Describe(filepath.Base(p))
		cmd := exec.CommandContext(ctx, "ffmpeg", ffmpegArgs(p, outPath, filter, cfg)...)
		if outBytes, err := cmd.CombinedOutput(); err != nil {
			if ctx.Err() != nil {
				// Half-transcoded output must not be mistaken for a finished
				// file on the next run.
				_ = os.Remove(outPath)
				return ctx.Err()
			}
			logger.Error("postprocess: ffmpeg failed, skipping",
				"source", p,
				"err", err,
				"output", strings.TrimSpace(string(outBytes)),
			)
			_ = os.Remove(outPath)
		}
		_ = bar.Add(1)
	}
	return nil
}
