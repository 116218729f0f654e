// Package engine holds the process-wide runtime state: monotonic counters
// and the per-event consecutive scrape-failure map. One Engine value is
// constructed at startup and passed by reference to workers and handlers;
// there is no global.
package engine

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Engine aggregates runtime counters. All methods are safe for concurrent
// use; counters reset on process restart (durable history lives in the
// repository).
type Engine struct {
	startedAt time.Time

	checksTotal        atomic.Int64
	failuresTotal      atomic.Int64
	openingsTotal      atomic.Int64
	notificationsTotal atomic.Int64
	lastCheckNs        atomic.Int64

	// key: event numero, value: consecutive failed polls
	eventFailures *xsync.Map[int64, *atomic.Int64]
}

// RuntimeStats is a point-in-time snapshot of the engine counters.
type RuntimeStats struct {
	UptimeSeconds     int64 `json:"uptime_seconds"`
	ChecksTotal       int64 `json:"checks_total"`
	FailuresTotal     int64 `json:"failures_total"`
	OpeningsDetected  int64 `json:"openings_detected"`
	NotificationsSent int64 `json:"notifications_sent"`
	LastCheckUnix     int64 `json:"last_check_unix"`
	EventsFailing     int64 `json:"events_failing"`
}

func New() *Engine {
	return &Engine{
		startedAt:     time.Now(),
		eventFailures: xsync.NewMap[int64, *atomic.Int64](),
	}
}

// RecordCheck counts one poll attempt. A successful poll resets the event's
// failure streak; a failed one extends it.
func (e *Engine) RecordCheck(numero int64, ok bool) {
	e.checksTotal.Add(1)
	e.lastCheckNs.Store(time.Now().UnixNano())
	ctr, _ := e.eventFailures.LoadOrStore(numero, new(atomic.Int64))
	if ok {
		ctr.Store(0)
		return
	}
	e.failuresTotal.Add(1)
	ctr.Add(1)
}

// ConsecutiveFailures returns the current failure streak for one event.
func (e *Engine) ConsecutiveFailures(numero int64) int64 {
	if ctr, ok := e.eventFailures.Load(numero); ok {
		return ctr.Load()
	}
	return 0
}

// Forget drops the failure streak of an event that left the watchlist.
func (e *Engine) Forget(numero int64) {
	e.eventFailures.Delete(numero)
}

// FailingEvents returns a best-effort snapshot of events with a positive
// failure streak.
func (e *Engine) FailingEvents() map[int64]int64 {
	out := make(map[int64]int64)
	e.eventFailures.Range(func(numero int64, ctr *atomic.Int64) bool {
		if ctr == nil {
			return true
		}
		if n := ctr.Load(); n > 0 {
			out[numero] = n
		}
		return true
	})
	return out
}

// RecordOpening counts one detected closed-to-open transition.
func (e *Engine) RecordOpening() {
	e.openingsTotal.Add(1)
}

// RecordNotification counts one successful channel delivery.
func (e *Engine) RecordNotification() {
	e.notificationsTotal.Add(1)
}

// Runtime snapshots all counters.
func (e *Engine) Runtime() RuntimeStats {
	var lastUnix int64
	if ns := e.lastCheckNs.Load(); ns > 0 {
		lastUnix = ns / int64(time.Second)
	}
	return RuntimeStats{
		UptimeSeconds:     int64(time.Since(e.startedAt).Seconds()),
		ChecksTotal:       e.checksTotal.Load(),
		FailuresTotal:     e.failuresTotal.Load(),
		OpeningsDetected:  e.openingsTotal.Load(),
		NotificationsSent: e.notificationsTotal.Load(),
		LastCheckUnix:     lastUnix,
		EventsFailing:     int64(len(e.FailingEvents())),
	}
}
