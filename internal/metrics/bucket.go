// Package metrics accumulates time-bucketed activity counters: polls,
// failures, detected openings, and sent notifications. Completed buckets are
// persisted so the activity endpoint survives restarts.
package metrics

import (
	"sync"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Aggregator accumulates activity within time buckets aligned to
// HOOFS_METRIC_BUCKET_SECONDS boundaries. Thread-safe.
type Aggregator struct {
	mu            sync.Mutex
	bucketSeconds int64

	// Current bucket state (accumulated since last flush).
	currentStart  int64
	checks        int64
	failures      int64
	openings      int64
	notifications int64
}

// NewAggregator creates an aggregator with the given bucket width.
func NewAggregator(bucketSeconds int) *Aggregator {
	if bucketSeconds <= 0 {
		bucketSeconds = 3600
	}
	now := time.Now().Unix()
	return &Aggregator{
		bucketSeconds: int64(bucketSeconds),
		currentStart:  (now / int64(bucketSeconds)) * int64(bucketSeconds),
	}
}

// AddCheck records one poll attempt into the current bucket.
func (a *Aggregator) AddCheck(ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks++
	if !ok {
		a.failures++
	}
}

// AddOpening records one detected opening into the current bucket.
func (a *Aggregator) AddOpening() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openings++
}

// AddNotification records one successful channel send into the current bucket.
func (a *Aggregator) AddNotification() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notifications++
}

// Live returns the current partial bucket without resetting it.
func (a *Aggregator) Live() model.ActivityBucket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// MaybeFlush checks whether now has moved past the current bucket boundary.
// If so, it returns the completed bucket and resets onto the bucket that
// contains now. Otherwise returns nil.
func (a *Aggregator) MaybeFlush(now time.Time) *model.ActivityBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	nowUnix := now.Unix()
	if nowUnix < a.currentStart+a.bucketSeconds {
		return nil
	}
	data := a.snapshotLocked()
	a.resetLocked((nowUnix / a.bucketSeconds) * a.bucketSeconds)
	return &data
}

// ForceFlush returns the current bucket regardless of boundary and resets.
// Returns nil when nothing was accumulated. Used during shutdown.
func (a *Aggregator) ForceFlush() *model.ActivityBucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.checks == 0 && a.failures == 0 && a.openings == 0 && a.notifications == 0 {
		return nil
	}
	data := a.snapshotLocked()
	a.resetLocked(a.currentStart)
	return &data
}

func (a *Aggregator) snapshotLocked() model.ActivityBucket {
	return model.ActivityBucket{
		BucketStartUnix: a.currentStart,
		Checks:          a.checks,
		Failures:        a.failures,
		Openings:        a.openings,
		Notifications:   a.notifications,
	}
}

func (a *Aggregator) resetLocked(start int64) {
	a.currentStart = start
	a.checks = 0
	a.failures = 0
	a.openings = 0
	a.notifications = 0
}
