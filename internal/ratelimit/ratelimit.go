// Package ratelimit paces outbound fetches against the competition site.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter grants fetch slots under two constraints: at least minInterval
// between consecutive grants, and at most maxPerWindow grants inside the
// trailing window. Both are measured at grant time, so a caller that slept
// waiting for a slot re-checks before it is granted.
type Limiter struct {
	minInterval  time.Duration
	maxPerWindow int
	window       time.Duration

	mu     sync.Mutex
	last   time.Time
	grants []time.Time
}

// New builds a Limiter. A non-positive minInterval disables the spacing
// constraint; a non-positive maxPerWindow disables the window constraint.
func New(minInterval time.Duration, maxPerWindow int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		minInterval:  minInterval,
		maxPerWindow: maxPerWindow,
		window:       window,
	}
}

// Acquire blocks until a fetch slot is granted or ctx is done. The returned
// error is nil on grant and ctx.Err() on cancellation.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)
		wait := l.nextWait(now)
		if wait <= 0 {
			l.last = now
			l.grants = append(l.grants, now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// prune drops grant timestamps that left the trailing window. Callers hold mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.grants) && !l.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}

// nextWait returns how long the caller must sleep before re-checking, or
// zero when a slot is available now. Callers hold mu.
func (l *Limiter) nextWait(now time.Time) time.Duration {
	var wait time.Duration
	if l.minInterval > 0 && !l.last.IsZero() {
		if d := l.last.Add(l.minInterval).Sub(now); d > wait {
			wait = d
		}
	}
	if l.maxPerWindow > 0 && len(l.grants) >= l.maxPerWindow {
		oldest := l.grants[len(l.grants)-l.maxPerWindow]
		if d := oldest.Add(l.window).Sub(now); d > wait {
			wait = d
		}
	}
	return wait
}
