package state

import (
	"database/sql"
	"fmt"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Enqueue inserts one pending queue entry. A duplicate active entry for the
// same (user, event) pair violates the partial unique index and is reported
// as ErrConflict; callers treat that as idempotent success.
func (r *Repo) Enqueue(e model.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO queue (id, user_id, event_numero, plan, send_at_ns, sent, sent_at_ns, claim_token, claimed_at_ns, created_at_ns)
		VALUES (?, ?, ?, ?, ?, 0, 0, '', 0, ?)
	`, e.ID, e.UserID, e.EventNumero, string(e.Plan), e.SendAtNs, e.CreatedAtNs)
	if isConstraintErr(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("enqueue %s/%d: %w", e.UserID, e.EventNumero, err)
	}
	return nil
}

// ClaimDueQueueEntries atomically claims up to limit due entries for one
// dispatch cycle. An entry is due when it is unsent, its send_at has passed,
// and it is either unclaimed or its previous claim is older than claimTTLNs
// (a crashed worker's claim expires). Claimed rows are tagged with
// claimToken in the same transaction that selects them, so two workers can
// never deliver the same entry. Results are ordered by send_at ascending and
// joined with user profile and event snapshot.
func (r *Repo) ClaimDueQueueEntries(nowNs int64, limit int, claimToken string, claimTTLNs int64) ([]model.DueNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("claim queue: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE queue SET claim_token = ?, claimed_at_ns = ?
		WHERE id IN (
			SELECT id FROM queue
			WHERE sent = 0 AND send_at_ns <= ?
			  AND (claim_token = '' OR claimed_at_ns <= ?)
			ORDER BY send_at_ns
			LIMIT ?
		)
	`, claimToken, nowNs, nowNs, nowNs-claimTTLNs, limit)
	if err != nil {
		return nil, fmt.Errorf("claim queue: tag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, tx.Commit()
	}

	rows, err := tx.Query(`
		SELECT q.id, q.user_id, q.event_numero, q.plan, q.send_at_ns, q.sent, q.sent_at_ns,
		       q.claim_token, q.claimed_at_ns, q.created_at_ns,
		       u.id, u.email, u.plan, u.push_token, u.push_enabled, u.email_enabled, u.created_at_ns,
		       e.numero, e.name, e.venue, e.date_debut, e.date_fin, e.discipline, e.organisateur,
		       e.status, e.is_open, e.last_check_at_ns, e.opened_at_ns, e.created_at_ns, e.updated_at_ns
		FROM queue q
		LEFT JOIN user_profiles u ON u.id = q.user_id
		LEFT JOIN events e ON e.numero = q.event_numero
		WHERE q.claim_token = ? AND q.sent = 0
		ORDER BY q.send_at_ns
	`, claimToken)
	if err != nil {
		return nil, fmt.Errorf("claim queue: select: %w", err)
	}
	defer rows.Close()

	var result []model.DueNotification
	for rows.Next() {
		var d model.DueNotification
		var qPlan string
		var uID, uEmail, uPlan, uPushToken sql.NullString
		var uPushEnabled, uEmailEnabled sql.NullBool
		var uCreatedAtNs sql.NullInt64
		var eNumero, eLastCheckNs, eOpenedNs, eCreatedNs, eUpdatedNs sql.NullInt64
		var eName, eVenue, eStart, eEnd, eDiscipline, eOrganizer, eStatus sql.NullString
		var eIsOpen sql.NullBool

		if err := rows.Scan(
			&d.Entry.ID, &d.Entry.UserID, &d.Entry.EventNumero, &qPlan, &d.Entry.SendAtNs,
			&d.Entry.Sent, &d.Entry.SentAtNs, &d.Entry.ClaimToken, &d.Entry.ClaimedAtNs, &d.Entry.CreatedAtNs,
			&uID, &uEmail, &uPlan, &uPushToken, &uPushEnabled, &uEmailEnabled, &uCreatedAtNs,
			&eNumero, &eName, &eVenue, &eStart, &eEnd, &eDiscipline, &eOrganizer,
			&eStatus, &eIsOpen, &eLastCheckNs, &eOpenedNs, &eCreatedNs, &eUpdatedNs,
		); err != nil {
			return nil, fmt.Errorf("claim queue: scan: %w", err)
		}

		d.Entry.Plan = model.Plan(qPlan)
		d.Profile = model.UserProfile{
			ID:           uID.String,
			Email:        uEmail.String,
			Plan:         model.Plan(uPlan.String),
			PushToken:    uPushToken.String,
			PushEnabled:  uPushEnabled.Bool,
			EmailEnabled: uEmailEnabled.Bool,
			CreatedAtNs:  uCreatedAtNs.Int64,
		}
		d.Event = model.Event{
			Numero:        eNumero.Int64,
			Name:          eName.String,
			Venue:         eVenue.String,
			StartDate:     eStart.String,
			EndDate:       eEnd.String,
			Discipline:    eDiscipline.String,
			Organizer:     eOrganizer.String,
			Status:        model.EventStatus(eStatus.String),
			IsOpen:        eIsOpen.Bool,
			LastCheckAtNs: eLastCheckNs.Int64,
			OpenedAtNs:    eOpenedNs.Int64,
			CreatedAtNs:   eCreatedNs.Int64,
			UpdatedAtNs:   eUpdatedNs.Int64,
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim queue: commit: %w", err)
	}
	return result, nil
}

// MarkEntrySent finalizes a queue entry. The row is terminal afterwards.
func (r *Repo) MarkEntrySent(id string, sentAtNs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(
		"UPDATE queue SET sent = 1, sent_at_ns = ? WHERE id = ? AND sent = 0",
		sentAtNs, id,
	)
	if err != nil {
		return fmt.Errorf("mark entry %s sent: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPendingQueue returns the number of unsent queue entries.
func (r *Repo) CountPendingQueue() (int64, error) {
	var n int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM queue WHERE sent = 0").Scan(&n)
	return n, err
}

// GetQueueEntry returns one queue entry by id, or ErrNotFound. Used by tests
// and the admin surface.
func (r *Repo) GetQueueEntry(id string) (model.QueueEntry, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, event_numero, plan, send_at_ns, sent, sent_at_ns, claim_token, claimed_at_ns, created_at_ns
		FROM queue WHERE id = ?
	`, id)

	var e model.QueueEntry
	var plan string
	err := row.Scan(&e.ID, &e.UserID, &e.EventNumero, &plan, &e.SendAtNs,
		&e.Sent, &e.SentAtNs, &e.ClaimToken, &e.ClaimedAtNs, &e.CreatedAtNs)
	if err == sql.ErrNoRows {
		return model.QueueEntry{}, ErrNotFound
	}
	if err != nil {
		return model.QueueEntry{}, fmt.Errorf("get queue entry %s: %w", id, err)
	}
	e.Plan = model.Plan(plan)
	return e, nil
}
