package state

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hoofs-app/hoofs/internal/model"
)

func pendingEntry(id, userID string, numero, sendAtNs int64) model.QueueEntry {
	return model.QueueEntry{
		ID:          id,
		UserID:      userID,
		EventNumero: numero,
		Plan:        model.PlanFree,
		SendAtNs:    sendAtNs,
		CreatedAtNs: 1,
	}
}

// --- enqueue ---

func TestRepo_Enqueue_ConflictOnActivePair(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Enqueue(pendingEntry("q1", "user-a", 100, 500)); err != nil {
		t.Fatal(err)
	}
	err := repo.Enqueue(pendingEntry("q2", "user-a", 100, 900))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// A different user or event is fine.
	if err := repo.Enqueue(pendingEntry("q3", "user-b", 100, 500)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Enqueue(pendingEntry("q4", "user-a", 200, 500)); err != nil {
		t.Fatal(err)
	}

	// Once the active entry is sent, the pair may be enqueued again.
	if err := repo.MarkEntrySent("q1", 600); err != nil {
		t.Fatal(err)
	}
	if err := repo.Enqueue(pendingEntry("q5", "user-a", 100, 900)); err != nil {
		t.Fatal(err)
	}
}

func TestRepo_Enqueue_ConcurrentSamePair(t *testing.T) {
	repo := newTestRepo(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Enqueue(pendingEntry(fmt.Sprintf("q%d", i), "user-a", 100, 500))
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 || conflicts != n-1 {
		t.Fatalf("created=%d conflicts=%d", created, conflicts)
	}
}

// --- claiming ---

func TestRepo_ClaimDueQueueEntries(t *testing.T) {
	repo := newTestRepo(t)
	mustUpsertEvent(t, repo, 100)
	mustUpsertProfile(t, repo, model.UserProfile{ID: "user-a", Email: "a@example.com", Plan: model.PlanPro, PushToken: "tok", PushEnabled: true, EmailEnabled: true, CreatedAtNs: 1})

	repo.Enqueue(pendingEntry("q-late", "user-b", 100, 300))
	repo.Enqueue(pendingEntry("q-early", "user-a", 100, 100))
	repo.Enqueue(pendingEntry("q-future", "user-c", 100, 9000))

	const ttl = int64(1000)
	due, err := repo.ClaimDueQueueEntries(500, 10, "claim-1", ttl)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due entries, got %+v", due)
	}
	if due[0].Entry.ID != "q-early" || due[1].Entry.ID != "q-late" {
		t.Fatalf("order by send_at: %+v", due)
	}
	if due[0].Entry.ClaimToken != "claim-1" || due[0].Entry.ClaimedAtNs != 500 {
		t.Fatalf("claim fields: %+v", due[0].Entry)
	}
	if due[0].Profile.Email != "a@example.com" || due[0].Event.Numero != 100 {
		t.Fatalf("joined rows: %+v", due[0])
	}
	// user-b has no profile row; the entry still surfaces with a zero profile.
	if due[1].Profile.ID != "" {
		t.Fatalf("expected zero profile for user-b, got %+v", due[1].Profile)
	}

	// A second worker inside the claim TTL sees nothing.
	again, err := repo.ClaimDueQueueEntries(600, 10, "claim-2", ttl)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed entries must be invisible inside the TTL: %+v", again)
	}

	// After the TTL the claim expires and another worker may retake the rows.
	retaken, err := repo.ClaimDueQueueEntries(500+ttl+1, 10, "claim-3", ttl)
	if err != nil {
		t.Fatal(err)
	}
	if len(retaken) != 2 {
		t.Fatalf("expired claims should be retakable: %+v", retaken)
	}
	if retaken[0].Entry.ClaimToken != "claim-3" {
		t.Fatalf("retaken claim token: %+v", retaken[0].Entry)
	}
}

func TestRepo_ClaimDueQueueEntries_Limit(t *testing.T) {
	repo := newTestRepo(t)

	for i := int64(1); i <= 5; i++ {
		repo.Enqueue(pendingEntry(fmt.Sprintf("q%d", i), "user", i, i*10))
	}

	due, err := repo.ClaimDueQueueEntries(1000, 3, "claim-1", 60_000)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 3 {
		t.Fatalf("limit: got %d entries", len(due))
	}
	// The oldest three by send_at are taken first.
	for i, want := range []string{"q1", "q2", "q3"} {
		if due[i].Entry.ID != want {
			t.Fatalf("position %d: got %s", i, due[i].Entry.ID)
		}
	}
}

func TestRepo_MarkEntrySent(t *testing.T) {
	repo := newTestRepo(t)

	repo.Enqueue(pendingEntry("q1", "user-a", 100, 100))

	n, err := repo.CountPendingQueue()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("pending: got %d", n)
	}

	if err := repo.MarkEntrySent("q1", 700); err != nil {
		t.Fatal(err)
	}
	e, err := repo.GetQueueEntry("q1")
	if err != nil {
		t.Fatal(err)
	}
	if !e.Sent || e.SentAtNs != 700 {
		t.Fatalf("after send: %+v", e)
	}

	if err := repo.MarkEntrySent("q1", 800); !errors.Is(err, ErrNotFound) {
		t.Fatalf("sent is terminal, got %v", err)
	}
	if err := repo.MarkEntrySent("missing", 800); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	n, _ = repo.CountPendingQueue()
	if n != 0 {
		t.Fatalf("pending after send: got %d", n)
	}

	// Sent entries are never claimed again.
	due, err := repo.ClaimDueQueueEntries(10_000, 10, "claim-1", 60_000)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("sent entries must not be claimable: %+v", due)
	}
}
