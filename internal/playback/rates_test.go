package playback_test

import (
	"testing"

	"podvoice/internal/playback"
)

func TestRateLadder(t *testing.T) {
	ladder := playback.DefaultRateLadder()

	if next, ok := ladder.NextRate(1.5); !ok || next != 1.75 {
		t.Fatalf("NextRate(1.5) = %v, %v", next, ok)
	}
	if _, ok := ladder.NextRate(2); ok {
		t.Fatal("fastest rate has no successor")
	}
	if next, ok := ladder.NextRate(0.8); !ok || next != 1 {
		t.Fatalf("off-list speed up should go to the first entry, got %v %v", next, ok)
	}
	if prev, ok := ladder.PrevRate(1.25); !ok || prev != 1 {
		t.Fatalf("PrevRate(1.25) = %v, %v", prev, ok)
	}
	if _, ok := ladder.PrevRate(1); ok {
		t.Fatal("slowest rate has no predecessor")
	}
	if _, ok := ladder.PrevRate(1.1); ok {
		t.Fatal("off-list slow down is a no-op")
	}
	if ladder.NormalRate() != 1 {
		t.Fatal("normal rate is the first entry")
	}
}

func TestNewRateLadderRejectsBadInput(t *testing.T) {
	for _, rates := range [][]float64{nil, {1, 1}, {2, 1}, {0, 1}} {
		if _, err := playback.NewRateLadder(rates); err == nil {
			t.Fatalf("expected error for %v", rates)
		}
	}
}
