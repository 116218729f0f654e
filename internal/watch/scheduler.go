package watch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hoofs-app/hoofs/internal/engine"
	"github.com/hoofs-app/hoofs/internal/metrics"
	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/ratelimit"
	"github.com/hoofs-app/hoofs/internal/scanloop"
	"github.com/hoofs-app/hoofs/internal/scrape"
	"github.com/hoofs-app/hoofs/internal/state"
)

const (
	// maxTickFailures is the streak of whole-tick failures after which the
	// loop backs off before retrying.
	maxTickFailures = 3
	tickBackoff     = 60 * time.Second
)

// OpeningPlanner fans one detected opening out to subscriber queue entries
// and returns how many were enqueued.
type OpeningPlanner interface {
	PlanOpening(ctx context.Context, numero int64, openedAtNs int64) (int, error)
}

// CheckSink receives one record per poll attempt, successful or not.
type CheckSink interface {
	Record(model.CheckRecord)
}

// Scheduler walks the closed watched events at a fixed cadence, scrapes each
// one, and drives the detector. Open events are not re-polled; they re-enter
// the candidate set only when a forced check observes them closed again.
type Scheduler struct {
	repo    *state.Repo
	scraper *scrape.Scraper
	limiter *ratelimit.Limiter
	planner OpeningPlanner
	checks  CheckSink
	engine  *engine.Engine
	metrics *metrics.Manager

	checkInterval time.Duration
	eventPause    time.Duration
	debug         bool

	// failStreak counts consecutive whole-tick failures. Touched only by
	// the run loop goroutine.
	failStreak int

	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// SchedulerConfig wires the scheduler's collaborators and tuning.
type SchedulerConfig struct {
	Repo    *state.Repo
	Scraper *scrape.Scraper
	Limiter *ratelimit.Limiter
	Planner OpeningPlanner
	Checks  CheckSink
	Engine  *engine.Engine
	Metrics *metrics.Manager

	CheckInterval time.Duration
	EventPause    time.Duration
	Debug         bool
}

// NewScheduler creates a scheduler. Call Start to begin polling.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	eventPause := cfg.EventPause
	if eventPause <= 0 {
		eventPause = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		repo:          cfg.Repo,
		scraper:       cfg.Scraper,
		limiter:       cfg.Limiter,
		planner:       cfg.Planner,
		checks:        cfg.Checks,
		engine:        cfg.Engine,
		metrics:       cfg.Metrics,
		checkInterval: checkInterval,
		eventPause:    eventPause,
		debug:         cfg.Debug,
		ctx:           ctx,
		cancel:        cancel,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the polling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the loop and cancels any in-flight scrape, then waits.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cancel()
	})
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	scanloop.RunDynamic(s.stopCh, s.nextInterval, s.tick)
}

// nextInterval stretches the cadence after repeated whole-tick failures and
// restores it once the streak is consumed.
func (s *Scheduler) nextInterval() time.Duration {
	if s.failStreak >= maxTickFailures {
		s.failStreak = 0
		log.Printf("[watch] %d consecutive tick failures, backing off %s", maxTickFailures, tickBackoff)
		return tickBackoff
	}
	return s.checkInterval
}

func (s *Scheduler) tick() {
	events, err := s.repo.ListEventsWhereOpen(false)
	if err != nil {
		s.failStreak++
		log.Printf("[watch] list watched events: %v", err)
		return
	}
	s.failStreak = 0

	for i := range events {
		if i > 0 && !s.pause() {
			return
		}
		s.pollEvent(s.ctx, events[i])
	}
}

// pause sleeps between events; false means the scheduler is stopping.
func (s *Scheduler) pause() bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(s.eventPause):
		return true
	}
}

// pollEvent shields the loop from a single event's failure.
func (s *Scheduler) pollEvent(ctx context.Context, pre model.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[watch] event %d: poll panicked: %v", pre.Numero, r)
		}
	}()
	if err := s.poll(ctx, pre); err != nil {
		log.Printf("[watch] event %d: %v", pre.Numero, err)
	}
}

// poll scrapes one event, records the check, and applies any transition.
func (s *Scheduler) poll(ctx context.Context, pre model.Event) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	snap := s.scraper.Fetch(ctx, pre.Numero)
	now := snap.CheckedAtNs

	s.engine.RecordCheck(pre.Numero, snap.Fetched)
	s.metrics.Check(snap.Fetched)
	s.checks.Record(checkRecordFor(pre, snap))

	if err := s.repo.TouchEventChecked(pre.Numero, now); err != nil {
		return fmt.Errorf("touch last check: %w", err)
	}
	if !snap.Fetched {
		return nil
	}

	if _, err := s.repo.UpsertEvent(pre.Numero, snap.Patch(), now); err != nil {
		return fmt.Errorf("upsert scraped fields: %w", err)
	}

	switch Detect(pre, snap) {
	case Opened:
		return s.onOpened(ctx, pre, snap)

	case Closed:
		if err := s.repo.SetEventStatus(pre.Numero, snap.Status, false, 0, now); err != nil {
			return fmt.Errorf("mark closed: %w", err)
		}
		if err := s.repo.ResetNotified(pre.Numero); err != nil {
			return fmt.Errorf("reset notified flags: %w", err)
		}
		log.Printf("[watch] event %d closed (%s)", pre.Numero, snap.Status)

	case StatusChanged:
		if err := s.repo.SetEventStatus(pre.Numero, snap.Status, snap.IsOpen, 0, now); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		log.Printf("[watch] event %d status %s -> %s", pre.Numero, pre.Status, snap.Status)

	case NoChange:
		if s.debug {
			log.Printf("[watch] event %d unchanged (%s) %dms", pre.Numero, pre.Status, snap.ResponseTimeMs)
		}
	}
	return nil
}

// onOpened marks the event open, fans notifications out, and records the
// opening for audit. Planner and audit failures do not undo the transition.
func (s *Scheduler) onOpened(ctx context.Context, pre model.Event, snap model.Snapshot) error {
	openedAt := snap.CheckedAtNs
	if err := s.repo.SetEventStatus(pre.Numero, snap.Status, true, openedAt, openedAt); err != nil {
		return fmt.Errorf("mark open: %w", err)
	}
	s.engine.RecordOpening()
	s.metrics.Opening()

	queued, err := s.planner.PlanOpening(ctx, pre.Numero, openedAt)
	if err != nil {
		log.Printf("[watch] event %d: plan notifications: %v", pre.Numero, err)
	}
	if _, err := s.repo.RecordOpening(pre.Numero, openedAt, snap.Status); err != nil {
		log.Printf("[watch] event %d: record opening: %v", pre.Numero, err)
	}
	log.Printf("[watch] event %d opened (%s), %d notifications queued", pre.Numero, snap.Status, queued)
	return nil
}

// CheckNow polls one event immediately, outside the scheduled cadence. It
// still passes through the rate limiter and records a check like any poll.
// Returns the refreshed event.
func (s *Scheduler) CheckNow(ctx context.Context, numero int64) (model.Event, error) {
	pre, err := s.repo.GetEvent(numero)
	if err != nil {
		return model.Event{}, err
	}
	if err := s.poll(ctx, pre); err != nil {
		return model.Event{}, err
	}
	return s.repo.GetEvent(numero)
}

func checkRecordFor(pre model.Event, snap model.Snapshot) model.CheckRecord {
	rec := model.CheckRecord{
		EventNumero:    pre.Numero,
		CheckedAtNs:    snap.CheckedAtNs,
		StatusBefore:   pre.Status,
		StatusAfter:    snap.Status,
		ResponseTimeMs: snap.ResponseTimeMs,
		Success:        snap.Fetched,
	}
	if !snap.Fetched {
		if snap.HTTPStatus != 0 {
			rec.Detail = fmt.Sprintf("http %d", snap.HTTPStatus)
		} else {
			rec.Detail = "fetch failed"
		}
	}
	return rec
}
