// Package janitor prunes aged history rows on a cron schedule.
package janitor

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoofs-app/hoofs/internal/state"
)

const (
	defaultSchedule       = "0 4 * * *"
	defaultCheckRetention = 30 * 24 * time.Hour
	defaultLogRetention   = 90 * 24 * time.Hour
)

// Config sets the cron schedule and retention windows.
type Config struct {
	Schedule       string // standard cron expression
	CheckRetention time.Duration
	LogRetention   time.Duration
	Debug          bool
}

// Janitor deletes check history and activity buckets past the check
// retention, and notification log rows and retired queue entries past the
// log retention. Active queue rows are never touched.
type Janitor struct {
	repo           *state.Repo
	cron           *cron.Cron
	checkRetention time.Duration
	logRetention   time.Duration
	debug          bool
}

// New wires a janitor onto the repository. The schedule is registered
// immediately; nothing fires until Start.
func New(repo *state.Repo, cfg Config) *Janitor {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.CheckRetention <= 0 {
		cfg.CheckRetention = defaultCheckRetention
	}
	if cfg.LogRetention <= 0 {
		cfg.LogRetention = defaultLogRetention
	}

	j := &Janitor{
		repo:           repo,
		cron:           cron.New(),
		checkRetention: cfg.CheckRetention,
		logRetention:   cfg.LogRetention,
		debug:          cfg.Debug,
	}
	if _, err := j.cron.AddFunc(cfg.Schedule, j.RunOnce); err != nil {
		log.Printf("[janitor] invalid cron expression %q: %v", cfg.Schedule, err)
	}
	return j
}

// Start begins scheduled pruning.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for an in-flight prune to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// RunOnce prunes every aged table immediately.
func (j *Janitor) RunOnce() {
	now := time.Now()
	checkCutoffNs := now.Add(-j.checkRetention).UnixNano()
	logCutoffNs := now.Add(-j.logRetention).UnixNano()

	checks := j.prune("check history", j.repo.PruneCheckHistory, checkCutoffNs)
	notifications := j.prune("notification log", j.repo.PruneNotificationLog, logCutoffNs)
	queue := j.prune("sent queue entries", j.repo.PruneSentQueueEntries, logCutoffNs)
	// Buckets older than the check retention are past the activity window.
	buckets := j.prune("activity buckets", j.repo.PruneActivityBuckets, now.Add(-j.checkRetention).Unix())

	if checks+notifications+queue+buckets > 0 || j.debug {
		log.Printf("[janitor] pruned %d checks, %d notifications, %d queue entries, %d activity buckets",
			checks, notifications, queue, buckets)
	}
}

func (j *Janitor) prune(name string, fn func(int64) (int64, error), cutoff int64) int64 {
	n, err := fn(cutoff)
	if err != nil {
		log.Printf("[janitor] prune %s: %v", name, err)
		return 0
	}
	return n
}
