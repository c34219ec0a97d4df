package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDestinationFor(t *testing.T) {
	cases := []struct {
		src    string
		suffix string
		want   string
	}{
		{filepath.Join("m", "x", "y.mid"), "", filepath.Join("a", "x", "y.wav")},
		{filepath.Join("m", "z.MID"), "", filepath.Join("a", "z.wav")},
		{filepath.Join("m", "z.mid"), "_take1", filepath.Join("a", "z_take1.wav")},
		{filepath.Join("m", "deep", "er", "q.Mid"), "_mic2", filepath.Join("a", "deep", "er", "q_mic2.wav")},
	}
	for _, c := range cases {
		got, err := destinationFor("m", "a", c.src, c.suffix)
		if err != nil {
			t.Fatalf("destinationFor(%q): %v", c.src, err)
		}
		if got != c.want {
			t.Fatalf("destinationFor(%q, suffix=%q) = %q; want %q", c.src, c.suffix, got, c.want)
		}
	}
}

func TestDiscoverSourcesOrdersBySizeAndFiltersExtensions(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string, n int) string {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, make([]byte, n), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	big := mustWrite("big.mid", 200)
	small := mustWrite(filepath.Join("sub", "small.MID"), 20)
	mid := mustWrite("mid.MiD", 100)
	mustWrite("ignored.midi", 10) // four-letter extension never matches
	mustWrite("notes.txt", 5)

	got, err := discoverSources(root)
	if err != nil {
		t.Fatalf("discoverSources: %v", err)
	}
	want := []string{small, mid, big}
	if len(got) != len(want) {
		t.Fatalf("discovered %d sources; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].path != want[i] {
			t.Fatalf("source %d = %q; want %q (ascending size)", i, got[i].path, want[i])
		}
	}
}

func testBatchRunner(t *testing.T, midiRoot, audioRoot string, ran *[]string) *batchRunner {
	t.Helper()
	cool, err := newCooldown(15, 3)
	if err != nil {
		t.Fatal(err)
	}
	return &batchRunner{
		cfg: batchConfig{
			midiRoot:    midiRoot,
			audioRoot:   audioRoot,
			sampleRate:  44100,
			numChannels: 2,
			tailMargin:  time.Millisecond,
		},
		cool: cool,
		runSession: func(_ context.Context, desc sessionDescriptor, _ openers) error {
			*ran = append(*ran, desc.sourcePath)
			return os.WriteFile(desc.destPath, []byte("fake take"), 0o644)
		},
	}
}

func TestBatchResumeSkipsExistingOutputs(t *testing.T) {
	midiRoot := t.TempDir()
	audioRoot := t.TempDir()

	aMid := filepath.Join(midiRoot, "a.mid")
	bMid := filepath.Join(midiRoot, "sub", "b.mid")
	if err := os.WriteFile(aMid, make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(bMid), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bMid, make([]byte, 20), 0o644); err != nil {
		t.Fatal(err)
	}

	// a.wav already exists from a previous run.
	aWav := filepath.Join(audioRoot, "a.wav")
	if err := os.WriteFile(aWav, []byte("previous take"), 0o644); err != nil {
		t.Fatal(err)
	}

	var ran []string
	r := testBatchRunner(t, midiRoot, audioRoot, &ran)
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(ran) != 1 || ran[0] != bMid {
		t.Fatalf("sessions ran for %v; want only %q", ran, bMid)
	}
	prior, err := os.ReadFile(aWav)
	if err != nil || string(prior) != "previous take" {
		t.Fatalf("existing artifact was touched: %q, %v", prior, err)
	}
	if _, err := os.Stat(filepath.Join(audioRoot, "sub", "b.wav")); err != nil {
		t.Fatalf("missing new output: %v", err)
	}

	// A second pass over the same roots runs nothing at all.
	ran = nil
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(ran) != 0 {
		t.Fatalf("resume re-ran sessions: %v", ran)
	}
}

func TestBatchContinuesPastFailedSessions(t *testing.T) {
	midiRoot := t.TempDir()
	audioRoot := t.TempDir()
	for i, n := range []int{10, 20, 30} {
		name := filepath.Join(midiRoot, string(rune('a'+i))+".mid")
		if err := os.WriteFile(name, make([]byte, n), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var ran []string
	r := testBatchRunner(t, midiRoot, audioRoot, &ran)
	inner := r.runSession
	r.runSession = func(ctx context.Context, desc sessionDescriptor, open openers) error {
		if filepath.Base(desc.sourcePath) == "b.mid" {
			return os.ErrPermission // device-style error: skip and continue
		}
		return inner(ctx, desc, open)
	}

	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ran) != 2 {
		t.Fatalf("ran %v; want the two working sources", ran)
	}
}

func TestBatchInterruptionAbortsRemaining(t *testing.T) {
	midiRoot := t.TempDir()
	audioRoot := t.TempDir()
	for i, n := range []int{10, 20, 30} {
		name := filepath.Join(midiRoot, string(rune('a'+i))+".mid")
		if err := os.WriteFile(name, make([]byte, n), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var ran []string
	r := testBatchRunner(t, midiRoot, audioRoot, &ran)
	r.runSession = func(_ context.Context, desc sessionDescriptor, _ openers) error {
		ran = append(ran, desc.sourcePath)
		return context.Canceled
	}

	err := r.run(context.Background())
	if err != context.Canceled {
		t.Fatalf("run returned %v; want context.Canceled", err)
	}
	if len(ran) != 1 {
		t.Fatalf("batch continued after interruption: %v", ran)
	}
}
