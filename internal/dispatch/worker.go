package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoofs-app/hoofs/internal/engine"
	"github.com/hoofs-app/hoofs/internal/metrics"
	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/notify"
	"github.com/hoofs-app/hoofs/internal/scanloop"
	"github.com/hoofs-app/hoofs/internal/state"
)

// Worker drains due queue entries and delivers them through the channel
// adapters. Every cycle claims a batch under a fresh uuid token, so a second
// worker (or a restarted one) can never deliver the same entry twice while a
// claim is fresh.
type Worker struct {
	repo     *state.Repo
	adapters []notify.Adapter
	engine   *engine.Engine
	metrics  *metrics.Manager

	interval   time.Duration
	batchLimit int
	claimTTL   time.Duration
	debug      bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WorkerConfig wires the worker's collaborators and tuning.
type WorkerConfig struct {
	Repo     *state.Repo
	Adapters []notify.Adapter
	Engine   *engine.Engine
	Metrics  *metrics.Manager

	Interval   time.Duration
	BatchLimit int
	ClaimTTL   time.Duration
	Debug      bool
}

// NewWorker creates a dispatch worker. Call Start to begin draining.
func NewWorker(cfg WorkerConfig) *Worker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	batchLimit := cfg.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 100
	}
	claimTTL := cfg.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = 60 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		repo:       cfg.Repo,
		adapters:   cfg.Adapters,
		engine:     cfg.Engine,
		metrics:    cfg.Metrics,
		interval:   interval,
		batchLimit: batchLimit,
		claimTTL:   claimTTL,
		debug:      cfg.Debug,
		ctx:        ctx,
		cancel:     cancel,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the drain loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop halts the loop and cancels in-flight sends, then waits.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.cancel()
	})
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	scanloop.Run(w.stopCh, w.interval, 0, w.tick)
}

func (w *Worker) tick() {
	now := time.Now().UnixNano()
	due, err := w.repo.ClaimDueQueueEntries(now, w.batchLimit, uuid.NewString(), w.claimTTL.Nanoseconds())
	if err != nil {
		log.Printf("[dispatch] claim due entries: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	if w.debug {
		log.Printf("[dispatch] claimed %d due entries", len(due))
	}
	for i := range due {
		w.deliver(w.ctx, due[i])
	}
}

// deliver fans one claimed entry out to every opted-in channel, then retires
// the entry. The entry is marked sent even when every channel fails: the
// notification log is the per-channel record of success, the queue row only
// guards against double delivery.
func (w *Worker) deliver(ctx context.Context, due model.DueNotification) {
	delivered := 0
	for _, adapter := range w.adapters {
		if !adapter.Enabled() || !wantsChannel(adapter.Name(), due.Profile) {
			continue
		}
		res := sendOpening(ctx, adapter, due.Profile, due.Event)
		if !res.OK {
			log.Printf("[dispatch] entry %s: %s to user %s failed: %s",
				due.Entry.ID, adapter.Name(), due.Entry.UserID, res.Detail)
			continue
		}
		delivered++
		w.engine.RecordNotification()
		w.metrics.Notification()
		rec := model.NotificationRecord{
			UserID:       due.Entry.UserID,
			EventNumero:  due.Entry.EventNumero,
			Channel:      adapter.Name(),
			Plan:         due.Entry.Plan,
			DelaySeconds: delaySeconds(due),
			SentAtNs:     time.Now().UnixNano(),
		}
		if err := w.repo.RecordNotification(rec); err != nil {
			log.Printf("[dispatch] entry %s: record %s notification: %v", due.Entry.ID, adapter.Name(), err)
		}
		if w.debug {
			log.Printf("[dispatch] entry %s: %s delivered to user %s (event %d)",
				due.Entry.ID, adapter.Name(), due.Entry.UserID, due.Entry.EventNumero)
		}
	}

	now := time.Now().UnixNano()
	if err := w.repo.MarkEntrySent(due.Entry.ID, now); err != nil {
		log.Printf("[dispatch] entry %s: mark sent: %v", due.Entry.ID, err)
	}
	if delivered > 0 {
		if err := w.repo.MarkOpeningNotified(due.Entry.EventNumero, now); err != nil {
			log.Printf("[dispatch] entry %s: mark opening notified: %v", due.Entry.ID, err)
		}
	}
}

// sendOpening shields the worker from a panicking adapter; the entry must
// still be retired afterwards.
func sendOpening(ctx context.Context, adapter notify.Adapter, user model.UserProfile, event model.Event) (res notify.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = notify.Result{Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return adapter.SendOpening(ctx, user, event)
}

// wantsChannel reports whether the profile opted into a channel and carries
// the address it needs.
func wantsChannel(channel string, profile model.UserProfile) bool {
	switch channel {
	case model.ChannelPush:
		return profile.PushEnabled && profile.PushToken != ""
	case model.ChannelEmail:
		return profile.EmailEnabled && profile.Email != ""
	}
	return false
}

// delaySeconds derives the delay the entry was planned with. The planner set
// send_at = opened_at + delay against the same opened_at the event row holds.
func delaySeconds(due model.DueNotification) int64 {
	if due.Event.OpenedAtNs == 0 || due.Entry.SendAtNs < due.Event.OpenedAtNs {
		return 0
	}
	return (due.Entry.SendAtNs - due.Event.OpenedAtNs) / int64(time.Second)
}
