package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/state"
)

const sampleWatchlist = `
events:
  - 202612345
  - 202654321
users:
  - id: "u-pro"
    email: dev@example.com
    plan: pro
    push_token: "sub-1"
  - id: "u-quiet"
    plan: free
subscriptions:
  - user: "u-pro"
    event: 202612345
  - user: "u-pro"
    event: 202699999
`

func newSeedRepo(t *testing.T) *state.Repo {
	t.Helper()
	repo, closer, err := state.Bootstrap(t.TempDir())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { closer.Close() })
	return repo
}

func TestParse_Valid(t *testing.T) {
	wl, err := Parse([]byte(sampleWatchlist))
	if err != nil {
		t.Fatal(err)
	}
	if len(wl.Events) != 2 || len(wl.Users) != 2 || len(wl.Subscriptions) != 2 {
		t.Fatalf("parsed: %+v", wl)
	}
	if wl.Users[0].PushToken != "sub-1" || wl.Users[0].Plan != "pro" {
		t.Fatalf("user: %+v", wl.Users[0])
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"negative numero", "events: [-3]", "must be positive"},
		{"zero sub event", "subscriptions:\n  - user: u1\n    event: 0", "must be positive"},
		{"unknown plan", "users:\n  - id: u1\n    plan: platinum", "unknown plan"},
		{"missing user id", "users:\n  - plan: free", "id is required"},
		{"missing sub user", "subscriptions:\n  - event: 42", "user is required"},
		{"not yaml", "events: [\"je", "unmarshal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestApply_SeedsRepository(t *testing.T) {
	repo := newSeedRepo(t)
	wl, err := Parse([]byte(sampleWatchlist))
	if err != nil {
		t.Fatal(err)
	}
	if err := wl.Apply(repo); err != nil {
		t.Fatal(err)
	}

	// Events become previsional shells.
	ev, err := repo.GetEvent(202612345)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Status != model.StatusPrevisional || ev.IsOpen {
		t.Fatalf("shell: %+v", ev)
	}

	// Subscriptions may reference events absent from the events section.
	if _, err := repo.GetEvent(202699999); err != nil {
		t.Fatalf("subscription-only event: %v", err)
	}
	n, err := repo.CountSubscribers(202699999)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("subscribers: got %d, want 1", n)
	}

	// Channel opt-ins follow the provided addresses.
	pro, err := repo.GetUserProfile("u-pro")
	if err != nil {
		t.Fatal(err)
	}
	if !pro.PushEnabled || !pro.EmailEnabled || pro.Plan != model.PlanPro {
		t.Fatalf("u-pro: %+v", pro)
	}
	quiet, err := repo.GetUserProfile("u-quiet")
	if err != nil {
		t.Fatal(err)
	}
	if quiet.PushEnabled || quiet.EmailEnabled {
		t.Fatalf("u-quiet should have no channels: %+v", quiet)
	}
}

func TestApply_Idempotent(t *testing.T) {
	repo := newSeedRepo(t)
	wl, err := Parse([]byte(sampleWatchlist))
	if err != nil {
		t.Fatal(err)
	}
	if err := wl.Apply(repo); err != nil {
		t.Fatal(err)
	}
	if err := wl.Apply(repo); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	n, err := repo.CountSubscribers(202612345)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("subscribers after reapply: got %d, want 1", n)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.yaml")
	if err := os.WriteFile(path, []byte(sampleWatchlist), 0o644); err != nil {
		t.Fatal(err)
	}

	wl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(wl.Events) != 2 {
		t.Fatalf("events: %v", wl.Events)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
