// Package audit persists the high-volume check history without blocking the
// polling path. Records are buffered on a channel and a background goroutine
// flushes them to the repository in batches.
package audit

import (
	"log"
	"sync"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/state"
)

// Writer is the async batched check-history writer.
// Record performs a non-blocking channel send; when the buffer is full it
// falls back to a synchronous repository append, so no check row is dropped.
type Writer struct {
	repo      *state.Repo
	queue     chan model.CheckRecord
	batchSize int
	interval  time.Duration
	debug     bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Options configures the check writer.
type Options struct {
	QueueSize     int
	FlushBatch    int
	FlushInterval time.Duration
	Debug         bool
}

// NewWriter creates a check writer backed by repo.
func NewWriter(repo *state.Repo, opts Options) *Writer {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	batchSize := opts.FlushBatch
	if batchSize <= 0 {
		batchSize = 256
	}
	interval := opts.FlushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Writer{
		repo:      repo,
		queue:     make(chan model.CheckRecord, queueSize),
		batchSize: batchSize,
		interval:  interval,
		debug:     opts.Debug,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background flush goroutine.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.flushLoop()
}

// Stop signals the flush loop to stop, drains remaining records, and returns.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Record enqueues one check record.
func (w *Writer) Record(rec model.CheckRecord) {
	select {
	case w.queue <- rec:
	default:
		// Buffer full, fall back to a synchronous append.
		if err := w.repo.RecordChecks([]model.CheckRecord{rec}); err != nil {
			log.Printf("[audit] synchronous check append failed: %v", err)
		}
	}
}

// flushLoop runs until stopCh is closed, flushing on batch size or timer.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	batch := make([]model.CheckRecord, 0, w.batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-w.queue:
			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}

		case <-w.stopCh:
			w.drainAndFlush(batch)
			return
		}
	}
}

func (w *Writer) drainAndFlush(batch []model.CheckRecord) {
	for {
		select {
		case rec := <-w.queue:
			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *Writer) flush(records []model.CheckRecord) {
	if err := w.repo.RecordChecks(records); err != nil {
		log.Printf("[audit] flush %d check records failed: %v", len(records), err)
		return
	}
	if w.debug {
		log.Printf("[audit] flushed %d check records", len(records))
	}
}
