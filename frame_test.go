package main

import "testing"

func TestInterleave24(t *testing.T) {
	block := [][]float32{
		{0.5, -0.5},
		{0.0, 1.0},
	}
	got := interleave24(block)
	want := []int{clamp24(0.5), clamp24(0.0), clamp24(-0.5), clamp24(1.0)}
	if len(got) != len(want) {
		t.Fatalf("interleaved %d samples; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d; want %d (frame-major interleave)", i, got[i], want[i])
		}
	}
}

func TestClamp24Saturates(t *testing.T) {
	if got := clamp24(2.0); got != pcm24Max {
		t.Fatalf("clamp24(2.0) = %d; want %d", got, pcm24Max)
	}
	if got := clamp24(-2.0); got != pcm24Min {
		t.Fatalf("clamp24(-2.0) = %d; want %d", got, pcm24Min)
	}
	if got := clamp24(0); got != 0 {
		t.Fatalf("clamp24(0) = %d; want 0", got)
	}
}
