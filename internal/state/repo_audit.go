package state

import (
	"database/sql"
	"fmt"

	"github.com/hoofs-app/hoofs/internal/model"
)

// RecordChecks appends a batch of check records in one transaction.
func (r *Repo) RecordChecks(records []model.CheckRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.bulkExec(`
		INSERT INTO check_history (event_numero, checked_at_ns, status_before, status_after, response_time_ms, success, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(records), func(stmt *sql.Stmt, i int) error {
		c := records[i]
		_, err := stmt.Exec(c.EventNumero, c.CheckedAtNs, string(c.StatusBefore), string(c.StatusAfter),
			c.ResponseTimeMs, c.Success, c.Detail)
		return err
	})
}

// RecordOpening appends an opening event and returns it with its assigned id.
func (r *Repo) RecordOpening(numero int64, openedAtNs int64, status model.EventStatus) (model.OpeningEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
		INSERT INTO opening_events (event_numero, opened_at_ns, status, notification_sent_at_ns)
		VALUES (?, ?, ?, 0)
	`, numero, openedAtNs, string(status))
	if err != nil {
		return model.OpeningEvent{}, fmt.Errorf("record opening %d: %w", numero, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.OpeningEvent{}, err
	}
	return model.OpeningEvent{
		ID:          id,
		EventNumero: numero,
		OpenedAtNs:  openedAtNs,
		Status:      status,
	}, nil
}

// MarkOpeningNotified stamps the first successful notification time on the
// most recent opening of the event. Later deliveries for the same opening
// leave the stamp untouched.
func (r *Repo) MarkOpeningNotified(numero int64, atNs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		UPDATE opening_events SET notification_sent_at_ns = ?
		WHERE notification_sent_at_ns = 0
		  AND id = (SELECT id FROM opening_events WHERE event_numero = ? ORDER BY opened_at_ns DESC, id DESC LIMIT 1)
	`, atNs, numero)
	if err != nil {
		return fmt.Errorf("mark opening notified %d: %w", numero, err)
	}
	return nil
}

// RecordNotification appends one delivery to the notification log.
func (r *Repo) RecordNotification(n model.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO notification_log (user_id, event_numero, channel, plan, delay_seconds, sent_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.UserID, n.EventNumero, n.Channel, string(n.Plan), n.DelaySeconds, n.SentAtNs)
	if err != nil {
		return fmt.Errorf("record notification %s/%d: %w", n.UserID, n.EventNumero, err)
	}
	return nil
}

// ListRecentChecks returns the newest check records for one event.
func (r *Repo) ListRecentChecks(numero int64, limit int) ([]model.CheckRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, event_numero, checked_at_ns, status_before, status_after, response_time_ms, success, detail
		FROM check_history
		WHERE event_numero = ?
		ORDER BY checked_at_ns DESC, id DESC
		LIMIT ?
	`, numero, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.CheckRecord
	for rows.Next() {
		var c model.CheckRecord
		var before, after string
		if err := rows.Scan(&c.ID, &c.EventNumero, &c.CheckedAtNs, &before, &after,
			&c.ResponseTimeMs, &c.Success, &c.Detail); err != nil {
			return nil, err
		}
		c.StatusBefore = model.EventStatus(before)
		c.StatusAfter = model.EventStatus(after)
		result = append(result, c)
	}
	return result, rows.Err()
}

// ListOpenings returns the newest opening events across all events.
func (r *Repo) ListOpenings(limit int) ([]model.OpeningEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, event_numero, opened_at_ns, status, notification_sent_at_ns
		FROM opening_events
		ORDER BY opened_at_ns DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OpeningEvent
	for rows.Next() {
		var o model.OpeningEvent
		var status string
		if err := rows.Scan(&o.ID, &o.EventNumero, &o.OpenedAtNs, &status, &o.NotificationSentAtNs); err != nil {
			return nil, err
		}
		o.Status = model.EventStatus(status)
		result = append(result, o)
	}
	return result, rows.Err()
}

// PruneCheckHistory deletes check records older than cutoffNs and returns
// the number removed.
func (r *Repo) PruneCheckHistory(cutoffNs int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec("DELETE FROM check_history WHERE checked_at_ns < ?", cutoffNs)
	if err != nil {
		return 0, fmt.Errorf("prune check history: %w", err)
	}
	return res.RowsAffected()
}

// PruneNotificationLog deletes log rows older than cutoffNs and returns the
// number removed.
func (r *Repo) PruneNotificationLog(cutoffNs int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec("DELETE FROM notification_log WHERE sent_at_ns < ?", cutoffNs)
	if err != nil {
		return 0, fmt.Errorf("prune notification log: %w", err)
	}
	return res.RowsAffected()
}

// PruneSentQueueEntries deletes sent queue rows whose delivery is older than
// cutoffNs. Active rows are never touched.
func (r *Repo) PruneSentQueueEntries(cutoffNs int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec("DELETE FROM queue WHERE sent = 1 AND sent_at_ns < ?", cutoffNs)
	if err != nil {
		return 0, fmt.Errorf("prune sent queue entries: %w", err)
	}
	return res.RowsAffected()
}
