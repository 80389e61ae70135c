package playback

import (
	"errors"
	"fmt"
	"math"
)

// DefaultRates is the ascending ladder used when none is configured.
var DefaultRates = []float64{1, 1.25, 1.5, 1.75, 2}

const rateTolerance = 1e-6

// RateLadder is an ascending list of selectable playback rates.
type RateLadder struct {
	rates []float64
}

// NewRateLadder validates rates (non-empty, positive, strictly ascending).
func NewRateLadder(rates []float64) (RateLadder, error) {
	if len(rates) == 0 {
		return RateLadder{}, errors.New("playback rates: list is empty")
	}
	for i, r := range rates {
		if !(r > 0) || math.IsInf(r, 0) {
			return RateLadder{}, fmt.Errorf("playback rates: entry %d (%v) must be positive", i, r)
		}
		if i > 0 && r <= rates[i-1] {
			return RateLadder{}, fmt.Errorf("playback rates: entry %d (%v) is not above %v", i, r, rates[i-1])
		}
	}
	cp := make([]float64, len(rates))
	copy(cp, rates)
	return RateLadder{rates: cp}, nil
}

// DefaultRateLadder returns the ladder built from DefaultRates.
func DefaultRateLadder() RateLadder {
	ladder, _ := NewRateLadder(DefaultRates)
	return ladder
}

// Rates returns a copy of the ladder entries.
func (l RateLadder) Rates() []float64 {
	out := make([]float64, len(l.rates))
	copy(out, l.rates)
	return out
}

func (l RateLadder) index(rate float64) int {
	for i, r := range l.rates {
		if math.Abs(r-rate) < rateTolerance {
			return i
		}
	}
	return -1
}

// NextRate returns the entry above current. An off-list current rate moves to
// the first entry; the fastest entry has no successor.
func (l RateLadder) NextRate(current float64) (float64, bool) {
	if len(l.rates) == 0 {
		return 0, false
	}
	idx := l.index(current)
	if idx < 0 {
		return l.rates[0], true
	}
	if idx+1 >= len(l.rates) {
		return 0, false
	}
	return l.rates[idx+1], true
}

// PrevRate returns the entry below current. Nothing is returned at the
// slowest entry or for an off-list rate.
func (l RateLadder) PrevRate(current float64) (float64, bool) {
	idx := l.index(current)
	if idx <= 0 {
		return 0, false
	}
	return l.rates[idx-1], true
}

// NormalRate is the first entry.
func (l RateLadder) NormalRate() float64 {
	if len(l.rates) == 0 {
		return DefaultPlaybackRate
	}
	return l.rates[0]
}
