package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
)

// -------------------- Batch runner --------------------

const destExtension = ".wav"

// batchConfig is the validated configuration for one batch run.
type batchConfig struct {
	midiRoot    string
	audioRoot   string
	portName    string
	audioDevice int
	sampleRate  int
	numChannels int
	channelMap  []int
	suffix      string
	tailMargin  time.Duration
}

type sourceFile struct {
	path string
	size int64
}

// discoverSources finds every .mid file (case-insensitive) under root and
// orders them by ascending size, so configuration mistakes surface on short
// performances before the batch commits to long ones.
func discoverSources(root string) ([]sourceFile, error) {
	var out []sourceFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".mid") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, sourceFile{path: p, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].size != out[j].size {
			return out[i].size < out[j].size
		}
		return out[i].path < out[j].path
	})
	return out, nil
}

// destinationFor mirrors src's path relative to midiRoot beneath audioRoot,
// inserting the suffix before the fixed .wav extension.
func destinationFor(midiRoot, audioRoot, src, suffix string) (string, error) {
	rel, err := filepath.Rel(midiRoot, src)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", src, err)
	}
	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	return filepath.Join(audioRoot, filepath.Dir(rel), stem+suffix+destExtension), nil
}

// batchRunner walks the source tree and drives one capture session per file
// under cooldown supervision. runSession is a field so tests can observe
// scheduling without touching hardware.
type batchRunner struct {
	cfg        batchConfig
	cool       *cooldown
	open       openers
	runSession func(ctx context.Context, desc sessionDescriptor, open openers) error
}

func (r *batchRunner) run(ctx context.Context) error {
	sources, err := discoverSources(r.cfg.midiRoot)
	if err != nil {
		return err
	}
	logger.Info("batch: sources discovered",
		"count", len(sources),
		"midi_root", r.cfg.midiRoot,
		"audio_root", r.cfg.audioRoot,
	)

	bar := progressbar.Default(int64(len(sources)))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		dest, err := destinationFor(r.cfg.midiRoot, r.cfg.audioRoot, src.path, r.cfg.suffix)
		if err != nil {
			logger.Error("batch: skipping source", "source", src.path, "err", err)
			_ = bar.Add(1)
			continue
		}

		// A present destination is the sole resume signal; it is never
		// re-validated for integrity.
		if _, statErr := os.Stat(dest); statErr == nil {
			logger.Info("batch: output exists, skipping", "dest", dest)
			_ = bar.Add(1)
			continue
		}

		if err := r.cool.pause(ctx); err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			logger.Error("batch: cannot create output directory, skipping", "source", src.path, "err", err)
			_ = bar.Add(1)
			continue
		}

		bar.Describe(filepath.Base(src.path))
		desc := sessionDescriptor{
			sourcePath:  src.path,
			destPath:    dest,
			sampleRate:  r.cfg.sampleRate,
			numChannels: r.cfg.numChannels,
			channelMap:  r.cfg.channelMap,
			tailMargin:  r.cfg.tailMargin,
		}
		if err := r.runSession(ctx, desc, r.open); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// Source and device errors cost one file, never the batch.
			logger.Error("batch: session failed, skipping", "source", src.path, "err", err)
		}
		_ = bar.Add(1)
	}
	return nil
}
