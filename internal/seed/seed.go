// Package seed loads an optional YAML watchlist into the repository at
// startup, so a fresh deployment starts watching events without waiting for
// API calls.
package seed

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/state"
)

// Watchlist is the parsed seed file. All sections are optional.
type Watchlist struct {
	Events        []int64        `yaml:"events"`
	Users         []User         `yaml:"users"`
	Subscriptions []Subscription `yaml:"subscriptions"`
}

// User seeds one notification profile. A channel is enabled when its
// address is present: an email enables the email channel, a push token the
// push channel. An empty plan defaults to free.
type User struct {
	ID        string `yaml:"id"`
	Email     string `yaml:"email"`
	Plan      string `yaml:"plan"`
	PushToken string `yaml:"push_token"`
}

// Subscription seeds one watched event for a user.
type Subscription struct {
	User  string `yaml:"user"`
	Event int64  `yaml:"event"`
}

// Load reads and parses the watchlist at path.
func Load(path string) (Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Watchlist{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	wl, err := Parse(data)
	if err != nil {
		return Watchlist{}, fmt.Errorf("seed: %s: %w", path, err)
	}
	return wl, nil
}

// Parse parses and validates watchlist YAML. Unknown plans and non-positive
// numeros are load failures, not rows to skip.
func Parse(data []byte) (Watchlist, error) {
	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return Watchlist{}, fmt.Errorf("unmarshal watchlist: %w", err)
	}

	for _, numero := range wl.Events {
		if numero <= 0 {
			return Watchlist{}, fmt.Errorf("event numero %d: must be positive", numero)
		}
	}
	for i, u := range wl.Users {
		if u.ID == "" {
			return Watchlist{}, fmt.Errorf("users[%d]: id is required", i)
		}
		if u.Plan != "" {
			if _, err := model.ParsePlan(u.Plan); err != nil {
				return Watchlist{}, fmt.Errorf("user %s: %w", u.ID, err)
			}
		}
	}
	for i, s := range wl.Subscriptions {
		if s.User == "" {
			return Watchlist{}, fmt.Errorf("subscriptions[%d]: user is required", i)
		}
		if s.Event <= 0 {
			return Watchlist{}, fmt.Errorf("subscription for %s: event numero %d: must be positive", s.User, s.Event)
		}
	}
	return wl, nil
}

// Apply upserts the watchlist into the repository. It is idempotent:
// existing events and profiles are updated in place and subscriptions
// already present are left alone.
func (wl Watchlist) Apply(repo *state.Repo) error {
	now := time.Now().UnixNano()

	for _, numero := range wl.Events {
		if _, err := repo.UpsertEvent(numero, model.EventPatch{}, now); err != nil {
			return fmt.Errorf("seed: event %d: %w", numero, err)
		}
	}
	for _, u := range wl.Users {
		plan := model.PlanFree
		if u.Plan != "" {
			plan, _ = model.ParsePlan(u.Plan)
		}
		profile := model.UserProfile{
			ID:           u.ID,
			Email:        u.Email,
			Plan:         plan,
			PushToken:    u.PushToken,
			PushEnabled:  u.PushToken != "",
			EmailEnabled: u.Email != "",
		}
		if err := repo.UpsertUserProfile(profile); err != nil {
			return fmt.Errorf("seed: user %s: %w", u.ID, err)
		}
	}
	for _, s := range wl.Subscriptions {
		// The subscription row carries a foreign key to events, so make
		// sure the shell exists even when the events section omits it.
		if _, err := repo.UpsertEvent(s.Event, model.EventPatch{}, now); err != nil {
			return fmt.Errorf("seed: event %d: %w", s.Event, err)
		}
		if _, err := repo.Subscribe(s.User, s.Event, now); err != nil {
			return fmt.Errorf("seed: subscribe %s to %d: %w", s.User, s.Event, err)
		}
	}
	return nil
}
