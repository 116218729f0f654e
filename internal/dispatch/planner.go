// Package dispatch turns detected openings into queued notifications and
// drains the queue through the configured channel adapters. The two halves
// share no state beyond the repository: the planner writes delayed entries,
// the worker claims and delivers whatever is due.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/state"
)

// Planner fans one opening out to per-subscriber delayed queue entries.
type Planner struct {
	repo     *state.Repo
	delayFor func(plan model.Plan) time.Duration
}

// NewPlanner creates a planner. delayFor maps a subscriber's plan to its
// notification delay.
func NewPlanner(repo *state.Repo, delayFor func(plan model.Plan) time.Duration) *Planner {
	return &Planner{repo: repo, delayFor: delayFor}
}

// PlanOpening enqueues one delayed notification per unnotified subscriber of
// numero and marks those subscribers notified. Returns the number of entries
// planned. An already-active entry for a (user, event) pair counts as planned:
// the user will be notified exactly once for this opening either way.
func (p *Planner) PlanOpening(ctx context.Context, numero int64, openedAtNs int64) (int, error) {
	subs, err := p.repo.ListSubscribersUnnotified(numero)
	if err != nil {
		return 0, fmt.Errorf("list subscribers: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	now := time.Now().UnixNano()
	planned := make([]string, 0, len(subs))
	for _, sub := range subs {
		entry := model.QueueEntry{
			ID:          uuid.NewString(),
			UserID:      sub.UserID,
			EventNumero: numero,
			Plan:        sub.Plan,
			SendAtNs:    openedAtNs + p.delayFor(sub.Plan).Nanoseconds(),
			CreatedAtNs: now,
		}
		err := p.repo.Enqueue(entry)
		if err != nil && !errors.Is(err, state.ErrConflict) {
			log.Printf("[dispatch] enqueue user=%s event=%d: %v", sub.UserID, numero, err)
			continue
		}
		planned = append(planned, sub.UserID)
	}

	if len(planned) > 0 {
		if err := p.repo.MarkSubscribersNotified(numero, planned); err != nil {
			return len(planned), fmt.Errorf("mark subscribers notified: %w", err)
		}
	}
	return len(planned), nil
}
