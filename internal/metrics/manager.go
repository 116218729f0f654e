package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/state"
)

// Manager owns the aggregator and persists completed buckets through the
// repository. A background loop flushes on bucket boundaries; Stop performs
// a final flush so a partial bucket survives shutdown (the repository merge
// is additive, so a restart within the same window keeps both halves).
type Manager struct {
	agg           *Aggregator
	repo          *state.Repo
	bucketSeconds int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a metrics manager with the given bucket width.
func NewManager(repo *state.Repo, bucketSeconds int) *Manager {
	if bucketSeconds <= 0 {
		bucketSeconds = 3600
	}
	return &Manager{
		agg:           NewAggregator(bucketSeconds),
		repo:          repo,
		bucketSeconds: bucketSeconds,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the bucket flush loop.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.bucketLoop()
}

// Stop halts the loop and persists the in-progress bucket.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()

	if data := m.agg.ForceFlush(); data != nil {
		m.persist(*data)
	}
}

// --- hot-path recording ---

// Check records one poll attempt.
func (m *Manager) Check(ok bool) { m.agg.AddCheck(ok) }

// Opening records one detected opening.
func (m *Manager) Opening() { m.agg.AddOpening() }

// Notification records one successful channel send.
func (m *Manager) Notification() { m.agg.AddNotification() }

// --- query methods (for API handlers) ---

// BucketSeconds returns the configured bucket width in seconds.
func (m *Manager) BucketSeconds() int { return m.bucketSeconds }

// LiveBucket returns the current in-memory partial bucket.
func (m *Manager) LiveBucket() model.ActivityBucket { return m.agg.Live() }

// Activity returns the persisted buckets in [fromUnix, toUnix] merged with
// the live bucket when it falls inside the range.
func (m *Manager) Activity(fromUnix, toUnix int64) ([]model.ActivityBucket, error) {
	buckets, err := m.repo.QueryActivityBuckets(fromUnix, toUnix)
	if err != nil {
		return nil, err
	}

	live := m.agg.Live()
	if live.Checks == 0 && live.Failures == 0 && live.Openings == 0 && live.Notifications == 0 {
		return buckets, nil
	}
	if live.BucketStartUnix < fromUnix || live.BucketStartUnix > toUnix {
		return buckets, nil
	}
	for i := range buckets {
		if buckets[i].BucketStartUnix == live.BucketStartUnix {
			buckets[i].Checks += live.Checks
			buckets[i].Failures += live.Failures
			buckets[i].Openings += live.Openings
			buckets[i].Notifications += live.Notifications
			return buckets, nil
		}
	}
	// Buckets come back ordered ascending; the live bucket is the newest.
	return append(buckets, live), nil
}

// --- background loop ---

func (m *Manager) bucketLoop() {
	defer m.wg.Done()

	// Align the first flush to the next bucket boundary.
	now := time.Now().Unix()
	bucketSec := int64(m.bucketSeconds)
	nextBoundary := ((now / bucketSec) + 1) * bucketSec

	select {
	case <-time.After(time.Duration(nextBoundary-now) * time.Second):
		m.flush()
	case <-m.stopCh:
		return
	}

	ticker := time.NewTicker(time.Duration(m.bucketSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.flush()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) flush() {
	data := m.agg.MaybeFlush(time.Now())
	if data == nil {
		return
	}
	if data.Checks == 0 && data.Failures == 0 && data.Openings == 0 && data.Notifications == 0 {
		return
	}
	m.persist(*data)
}

func (m *Manager) persist(b model.ActivityBucket) {
	// Bounded retry; a lost bucket is an acceptable gap, not a crash.
	for attempt := 0; attempt < 3; attempt++ {
		err := m.repo.UpsertActivityBucket(b)
		if err == nil {
			return
		}
		log.Printf("[metrics] bucket persist failed (attempt %d): %v", attempt+1, err)
		time.Sleep(200 * time.Millisecond)
	}
}
