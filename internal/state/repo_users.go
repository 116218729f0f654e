package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hoofs-app/hoofs/internal/model"
)

// UpsertUserProfile inserts or updates a user profile by ID.
// On update, created_at_ns is preserved (not overwritten).
func (r *Repo) UpsertUserProfile(p model.UserProfile) error {
	if _, err := model.ParsePlan(string(p.Plan)); err != nil {
		return fmt.Errorf("upsert user %s: %w", p.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO user_profiles (id, email, plan, push_token, push_enabled, email_enabled, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email         = excluded.email,
			plan          = excluded.plan,
			push_token    = excluded.push_token,
			push_enabled  = excluded.push_enabled,
			email_enabled = excluded.email_enabled
	`, p.ID, p.Email, string(p.Plan), p.PushToken, p.PushEnabled, p.EmailEnabled, p.CreatedAtNs)
	return err
}

// GetUserProfile returns the profile for id, or ErrNotFound.
func (r *Repo) GetUserProfile(id string) (model.UserProfile, error) {
	row := r.db.QueryRow(`
		SELECT id, email, plan, push_token, push_enabled, email_enabled, created_at_ns
		FROM user_profiles WHERE id = ?
	`, id)

	var p model.UserProfile
	var plan string
	err := row.Scan(&p.ID, &p.Email, &plan, &p.PushToken, &p.PushEnabled, &p.EmailEnabled, &p.CreatedAtNs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("get user %s: %w", id, err)
	}
	p.Plan = model.Plan(plan)
	return p, nil
}

// CountUsers returns the total number of user profiles.
func (r *Repo) CountUsers() (int64, error) {
	var n int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM user_profiles").Scan(&n)
	return n, err
}
