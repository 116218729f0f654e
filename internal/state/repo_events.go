package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hoofs-app/hoofs/internal/model"
)

const eventColumns = `numero, name, venue, date_debut, date_fin, discipline, organisateur,
	status, is_open, last_check_at_ns, opened_at_ns, created_at_ns, updated_at_ns`

// UpsertEvent inserts a previsional event shell for numero or patches the
// existing row. Only non-empty patch fields overwrite stored values; status
// and is_open are never touched (see SetEventStatus). Returns the post-image.
func (r *Repo) UpsertEvent(numero int64, patch model.EventPatch, nowNs int64) (model.Event, error) {
	if numero <= 0 {
		return model.Event{}, fmt.Errorf("upsert event: invalid numero %d", numero)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO events (numero, name, venue, date_debut, date_fin, discipline, organisateur, created_at_ns, updated_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(numero) DO UPDATE SET
			name          = COALESCE(NULLIF(excluded.name, ''), name),
			venue         = COALESCE(NULLIF(excluded.venue, ''), venue),
			date_debut    = COALESCE(NULLIF(excluded.date_debut, ''), date_debut),
			date_fin      = COALESCE(NULLIF(excluded.date_fin, ''), date_fin),
			discipline    = COALESCE(NULLIF(excluded.discipline, ''), discipline),
			organisateur  = COALESCE(NULLIF(excluded.organisateur, ''), organisateur),
			updated_at_ns = excluded.updated_at_ns
	`, numero, patch.Name, patch.Venue, patch.StartDate, patch.EndDate, patch.Discipline, patch.Organizer, nowNs, nowNs)
	if err != nil {
		return model.Event{}, fmt.Errorf("upsert event %d: %w", numero, err)
	}

	return r.getEvent(numero)
}

// GetEvent returns the event for numero, or ErrNotFound.
func (r *Repo) GetEvent(numero int64) (model.Event, error) {
	return r.getEvent(numero)
}

func (r *Repo) getEvent(numero int64) (model.Event, error) {
	row := r.db.QueryRow("SELECT "+eventColumns+" FROM events WHERE numero = ?", numero)
	e, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %d: %w", numero, err)
	}
	return e, nil
}

// ListEventsWhereOpen returns all events with the given is_open flag,
// ordered by numero. The scheduler polls the is_open=false set.
func (r *Repo) ListEventsWhereOpen(isOpen bool) ([]model.Event, error) {
	rows, err := r.db.Query("SELECT "+eventColumns+" FROM events WHERE is_open = ? ORDER BY numero", isOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsInDateRange returns events whose [date_debut, date_fin] window
// intersects [from, to] (ISO date strings), ordered by start date. Events
// without scraped dates are excluded.
func (r *Repo) ListEventsInDateRange(from, to string) ([]model.Event, error) {
	rows, err := r.db.Query(`
		SELECT `+eventColumns+` FROM events
		WHERE date_debut != '' AND date_fin != ''
		  AND date_debut <= ? AND date_fin >= ?
		ORDER BY date_debut, numero
	`, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsPage returns one page of events, open events first, then by
// start date (undated events last), then numero.
func (r *Repo) ListEventsPage(limit, offset int) ([]model.Event, error) {
	rows, err := r.db.Query(`
		SELECT `+eventColumns+` FROM events
		ORDER BY is_open DESC,
		         CASE WHEN date_debut = '' THEN 1 ELSE 0 END,
		         date_debut, numero
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CountEvents returns the total number of events.
func (r *Repo) CountEvents() (int64, error) {
	var n int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// SetEventStatus atomically updates status and is_open for one event.
// openedAtNs is written only when non-zero (the closed-to-open transition)
// and an existing opened_at is never cleared. Unknown statuses are rejected.
func (r *Repo) SetEventStatus(numero int64, status model.EventStatus, isOpen bool, openedAtNs, nowNs int64) error {
	if _, err := model.ParseEventStatus(string(status)); err != nil {
		return fmt.Errorf("set event status %d: %w", numero, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
		UPDATE events SET
			status        = ?,
			is_open       = ?,
			opened_at_ns  = CASE WHEN ? > 0 THEN ? ELSE opened_at_ns END,
			updated_at_ns = ?
		WHERE numero = ?
	`, string(status), isOpen, openedAtNs, openedAtNs, nowNs, numero)
	if err != nil {
		return fmt.Errorf("set event status %d: %w", numero, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchEventChecked records the time of the latest poll attempt.
func (r *Repo) TouchEventChecked(numero int64, atNs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		"UPDATE events SET last_check_at_ns = ?, updated_at_ns = ? WHERE numero = ?",
		atNs, atNs, numero,
	)
	return err
}

func scanEvent(scan func(dest ...any) error) (model.Event, error) {
	var e model.Event
	var status string
	err := scan(&e.Numero, &e.Name, &e.Venue, &e.StartDate, &e.EndDate, &e.Discipline, &e.Organizer,
		&status, &e.IsOpen, &e.LastCheckAtNs, &e.OpenedAtNs, &e.CreatedAtNs, &e.UpdatedAtNs)
	if err != nil {
		return model.Event{}, err
	}
	e.Status = model.EventStatus(status)
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var result []model.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
