package web

import (
	"math"
	"sync"
	"time"
)

// rateLimiter is a sliding-window counter per key. The count for a request is
// the current window's hits plus the previous window's hits weighted by how
// much of the previous window still overlaps the sliding interval.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*windowCount
	sweepAt time.Time
}

type windowCount struct {
	start    time.Time
	current  int
	previous int
}

type rateDecision struct {
	allowed   bool
	limit     int
	remaining int
	reset     time.Time
	now       time.Time
}

func (d rateDecision) retryAfterSeconds() int {
	secs := int(math.Ceil(d.reset.Sub(d.now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	if limit <= 0 {
		limit = 50
	}
	if window <= 0 {
		window = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		clients: make(map[string]*windowCount),
	}
}

func (l *rateLimiter) allow(key string) rateDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	windowStart := now.Truncate(l.window)
	wc, ok := l.clients[key]
	if !ok {
		wc = &windowCount{start: windowStart}
		l.clients[key] = wc
	}
	switch elapsed := windowStart.Sub(wc.start); {
	case elapsed >= 2*l.window:
		wc.previous, wc.current = 0, 0
		wc.start = windowStart
	case elapsed >= l.window:
		wc.previous, wc.current = wc.current, 0
		wc.start = windowStart
	}

	overlap := 1 - float64(now.Sub(windowStart))/float64(l.window)
	weighted := int(math.Floor(float64(wc.previous)*overlap)) + wc.current
	decision := rateDecision{
		limit: l.limit,
		reset: windowStart.Add(l.window),
		now:   now,
	}
	if weighted >= l.limit {
		return decision
	}
	wc.current++
	decision.allowed = true
	decision.remaining = l.limit - weighted - 1
	return decision
}

// sweepLocked drops clients idle for two windows.
func (l *rateLimiter) sweepLocked(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	l.sweepAt = now.Add(l.window)
	cutoff := now.Truncate(l.window).Add(-2 * l.window)
	for key, wc := range l.clients {
		if !wc.start.After(cutoff) {
			delete(l.clients, key)
		}
	}
}
