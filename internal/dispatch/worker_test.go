package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hoofs-app/hoofs/internal/engine"
	"github.com/hoofs-app/hoofs/internal/metrics"
	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/notify"
	"github.com/hoofs-app/hoofs/internal/state"
)

type stubAdapter struct {
	name    string
	ok      bool
	detail  string
	panicky bool

	mu    sync.Mutex
	sends []string
}

func (a *stubAdapter) Name() string  { return a.name }
func (a *stubAdapter) Enabled() bool { return true }

func (a *stubAdapter) SendOpening(_ context.Context, user model.UserProfile, event model.Event) notify.Result {
	a.mu.Lock()
	a.sends = append(a.sends, fmt.Sprintf("%s:%d", user.ID, event.Numero))
	a.mu.Unlock()
	if a.panicky {
		panic("adapter exploded")
	}
	return notify.Result{OK: a.ok, Detail: a.detail}
}

func (a *stubAdapter) SendTest(context.Context, model.UserProfile) notify.Result {
	return notify.Result{OK: a.ok, Detail: a.detail}
}

func (a *stubAdapter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sends)
}

type workerFixture struct {
	worker *Worker
	repo   *state.Repo
	engine *engine.Engine
	push   *stubAdapter
	email  *stubAdapter
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	repo := newDispatchRepo(t)
	push := &stubAdapter{name: model.ChannelPush, ok: true, detail: "delivered"}
	email := &stubAdapter{name: model.ChannelEmail, ok: true, detail: "sent"}
	eng := engine.New()
	w := NewWorker(WorkerConfig{
		Repo:     repo,
		Adapters: []notify.Adapter{push, email},
		Engine:   eng,
		Metrics:  metrics.NewManager(repo, 3600),
		Interval: 10 * time.Millisecond,
		ClaimTTL: time.Minute,
	})
	return &workerFixture{worker: w, repo: repo, engine: eng, push: push, email: email}
}

// seedDueEntry creates an open event with one recorded opening and one due
// queue entry for user. The opening happened ten minutes ago, the entry was
// planned with a ten minute (free tier) delay, so it is due right now.
func seedDueEntry(t *testing.T, repo *state.Repo, user model.UserProfile, numero int64) string {
	t.Helper()
	openedAt := time.Now().Add(-10 * time.Minute).UnixNano()

	if _, err := repo.UpsertEvent(numero, model.EventPatch{Name: "Concours Test"}, openedAt); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetEventStatus(numero, model.StatusEngagement, true, openedAt, openedAt); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.RecordOpening(numero, openedAt, model.StatusEngagement); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertUserProfile(user); err != nil {
		t.Fatal(err)
	}

	id := uuid.NewString()
	err := repo.Enqueue(model.QueueEntry{
		ID:          id,
		UserID:      user.ID,
		EventNumero: numero,
		Plan:        user.Plan,
		SendAtNs:    openedAt + (600 * time.Second).Nanoseconds(),
		CreatedAtNs: openedAt,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func fullOptInUser(id string) model.UserProfile {
	return model.UserProfile{
		ID:           id,
		Email:        id + "@example.com",
		Plan:         model.PlanFree,
		PushToken:    "tok-" + id,
		PushEnabled:  true,
		EmailEnabled: true,
	}
}

func TestWorker_DeliversBothChannels(t *testing.T) {
	fx := newWorkerFixture(t)
	id := seedDueEntry(t, fx.repo, fullOptInUser("u1"), 201)

	fx.worker.tick()

	if fx.push.count() != 1 || fx.email.count() != 1 {
		t.Fatalf("sends: push=%d email=%d", fx.push.count(), fx.email.count())
	}

	entry, err := fx.repo.GetQueueEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Sent || entry.SentAtNs == 0 {
		t.Fatalf("entry not retired: %+v", entry)
	}

	openings, err := fx.repo.ListOpenings(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(openings) != 1 || openings[0].NotificationSentAtNs == 0 {
		t.Fatalf("opening not marked notified: %+v", openings)
	}

	stats, err := fx.repo.GlobalStats(time.Now().UnixNano())
	if err != nil {
		t.Fatal(err)
	}
	if stats.NotificationsSent != 2 {
		t.Fatalf("notification log rows = %d, want 2", stats.NotificationsSent)
	}
	if got := fx.engine.Runtime().NotificationsSent; got != 2 {
		t.Fatalf("engine counter = %d, want 2", got)
	}
}

func TestWorker_HonorsChannelOptOuts(t *testing.T) {
	fx := newWorkerFixture(t)

	noPush := fullOptInUser("u-nopush")
	noPush.PushEnabled = false
	seedDueEntry(t, fx.repo, noPush, 202)

	noToken := fullOptInUser("u-notoken")
	noToken.PushToken = ""
	seedDueEntry(t, fx.repo, noToken, 203)

	fx.worker.tick()

	if fx.push.count() != 0 {
		t.Fatalf("push sends = %d, want 0", fx.push.count())
	}
	if fx.email.count() != 2 {
		t.Fatalf("email sends = %d, want 2", fx.email.count())
	}
}

func TestWorker_AllChannelsFailStillRetiresEntry(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.push.ok = false
	fx.push.detail = "push provider returned http 500"
	fx.email.ok = false
	fx.email.detail = "email provider returned http 500"
	id := seedDueEntry(t, fx.repo, fullOptInUser("u1"), 204)

	fx.worker.tick()

	entry, err := fx.repo.GetQueueEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Sent {
		t.Fatalf("failed deliveries must still retire the entry: %+v", entry)
	}

	openings, err := fx.repo.ListOpenings(1)
	if err != nil {
		t.Fatal(err)
	}
	if openings[0].NotificationSentAtNs != 0 {
		t.Fatalf("opening must not be marked notified: %+v", openings[0])
	}

	stats, err := fx.repo.GlobalStats(time.Now().UnixNano())
	if err != nil {
		t.Fatal(err)
	}
	if stats.NotificationsSent != 0 {
		t.Fatalf("notification log rows = %d, want 0", stats.NotificationsSent)
	}
}

func TestWorker_FutureEntriesWait(t *testing.T) {
	fx := newWorkerFixture(t)
	now := time.Now().UnixNano()
	if _, err := fx.repo.UpsertEvent(205, model.EventPatch{}, now); err != nil {
		t.Fatal(err)
	}
	if err := fx.repo.UpsertUserProfile(fullOptInUser("u1")); err != nil {
		t.Fatal(err)
	}
	id := uuid.NewString()
	err := fx.repo.Enqueue(model.QueueEntry{
		ID:          id,
		UserID:      "u1",
		EventNumero: 205,
		Plan:        model.PlanFree,
		SendAtNs:    now + time.Hour.Nanoseconds(),
		CreatedAtNs: now,
	})
	if err != nil {
		t.Fatal(err)
	}

	fx.worker.tick()

	if fx.push.count() != 0 || fx.email.count() != 0 {
		t.Fatal("future entry must not be delivered")
	}
	entry, err := fx.repo.GetQueueEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Sent {
		t.Fatalf("future entry retired early: %+v", entry)
	}
}

func TestWorker_EntryDeliveredOnce(t *testing.T) {
	fx := newWorkerFixture(t)
	seedDueEntry(t, fx.repo, fullOptInUser("u1"), 206)

	fx.worker.tick()
	fx.worker.tick()

	if fx.push.count() != 1 || fx.email.count() != 1 {
		t.Fatalf("sends: push=%d email=%d, want 1 each", fx.push.count(), fx.email.count())
	}
}

func TestWorker_AdapterPanicStillRetiresEntry(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.push.panicky = true
	id := seedDueEntry(t, fx.repo, fullOptInUser("u1"), 207)

	fx.worker.tick()

	entry, err := fx.repo.GetQueueEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Sent {
		t.Fatalf("panicking adapter must not block retirement: %+v", entry)
	}
	if fx.email.count() != 1 {
		t.Fatalf("email sends = %d, want 1", fx.email.count())
	}
	openings, err := fx.repo.ListOpenings(1)
	if err != nil {
		t.Fatal(err)
	}
	if openings[0].NotificationSentAtNs == 0 {
		t.Fatal("email success must mark the opening notified")
	}
}

func TestWorker_OrphanEntryRetiredWithoutSends(t *testing.T) {
	fx := newWorkerFixture(t)
	now := time.Now().UnixNano()
	id := uuid.NewString()
	err := fx.repo.Enqueue(model.QueueEntry{
		ID:          id,
		UserID:      "ghost",
		EventNumero: 208,
		Plan:        model.PlanFree,
		SendAtNs:    now - time.Second.Nanoseconds(),
		CreatedAtNs: now,
	})
	if err != nil {
		t.Fatal(err)
	}

	fx.worker.tick()

	if fx.push.count() != 0 || fx.email.count() != 0 {
		t.Fatal("orphan entry must not reach adapters")
	}
	entry, err := fx.repo.GetQueueEntry(id)
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Sent {
		t.Fatalf("orphan entry not retired: %+v", entry)
	}
}

func TestWorker_StartStop(t *testing.T) {
	fx := newWorkerFixture(t)
	seedDueEntry(t, fx.repo, fullOptInUser("u1"), 209)

	fx.worker.Start()

	deadline := time.Now().Add(2 * time.Second)
	for fx.email.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("entry never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	fx.worker.Stop()
	fx.worker.Stop()
}

func TestDelaySeconds(t *testing.T) {
	openedAt := time.Now().UnixNano()
	due := model.DueNotification{
		Entry: model.QueueEntry{SendAtNs: openedAt + (600 * time.Second).Nanoseconds()},
		Event: model.Event{OpenedAtNs: openedAt},
	}
	if got := delaySeconds(due); got != 600 {
		t.Fatalf("delay = %d, want 600", got)
	}

	due.Event.OpenedAtNs = 0
	if got := delaySeconds(due); got != 0 {
		t.Fatalf("delay without opening = %d, want 0", got)
	}

	due.Event.OpenedAtNs = due.Entry.SendAtNs + 1
	if got := delaySeconds(due); got != 0 {
		t.Fatalf("delay with newer opening = %d, want 0", got)
	}
}
