package state

import (
	"database/sql"
	"fmt"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Subscribe creates a subscription. Duplicate pairs are a no-op; the return
// value reports whether a new row was created.
func (r *Repo) Subscribe(userID string, numero int64, nowNs int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
		INSERT INTO subscriptions (user_id, event_numero, notified, created_at_ns)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(user_id, event_numero) DO NOTHING
	`, userID, numero, nowNs)
	if err != nil {
		return false, fmt.Errorf("subscribe %s to %d: %w", userID, numero, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Unsubscribe deletes a subscription and reports whether a row was removed.
func (r *Repo) Unsubscribe(userID string, numero int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(
		"DELETE FROM subscriptions WHERE user_id = ? AND event_numero = ?",
		userID, numero,
	)
	if err != nil {
		return false, fmt.Errorf("unsubscribe %s from %d: %w", userID, numero, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSubscribersUnnotified returns the profiles of subscribers not yet
// enqueued for the current opening of numero, ordered by user id.
func (r *Repo) ListSubscribersUnnotified(numero int64) ([]model.SubscriberProfile, error) {
	rows, err := r.db.Query(`
		SELECT s.user_id, s.event_numero, u.email, u.plan, u.push_token, u.push_enabled, u.email_enabled
		FROM subscriptions s
		JOIN user_profiles u ON u.id = s.user_id
		WHERE s.event_numero = ? AND s.notified = 0
		ORDER BY s.user_id
	`, numero)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.SubscriberProfile
	for rows.Next() {
		var p model.SubscriberProfile
		var plan string
		if err := rows.Scan(&p.UserID, &p.EventNumero, &p.Email, &plan,
			&p.PushToken, &p.PushEnabled, &p.EmailEnabled); err != nil {
			return nil, err
		}
		p.Plan = model.Plan(plan)
		result = append(result, p)
	}
	return result, rows.Err()
}

// MarkSubscribersNotified flips the notified flag for the given users on one
// event, all in one transaction.
func (r *Repo) MarkSubscribersNotified(numero int64, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.bulkExec(
		"UPDATE subscriptions SET notified = 1 WHERE event_numero = ? AND user_id = ?",
		len(userIDs),
		func(stmt *sql.Stmt, i int) error {
			_, err := stmt.Exec(numero, userIDs[i])
			return err
		},
	)
}

// ResetNotified clears the notified flag for all subscribers of numero.
// Called when an event transitions back to closed so the next opening
// notifies everyone again.
func (r *Repo) ResetNotified(numero int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec("UPDATE subscriptions SET notified = 0 WHERE event_numero = ?", numero)
	return err
}

// CountSubscribers returns the number of subscriptions for one event.
func (r *Repo) CountSubscribers(numero int64) (int64, error) {
	var n int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM subscriptions WHERE event_numero = ?", numero).Scan(&n)
	return n, err
}
