package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/state"
)

var isoDay = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// EventDetail is one event enriched with watcher and health context.
type EventDetail struct {
	model.Event
	Subscribers         int64 `json:"subscribers"`
	ConsecutiveFailures int64 `json:"consecutive_failures"`
}

// EventPage is one page of the full event listing.
type EventPage struct {
	Events []model.Event `json:"events"`
	Total  int64         `json:"total"`
}

// ListEventsInRange returns events whose date window intersects [from, to].
func (s *AdminService) ListEventsInRange(from, to string) ([]model.Event, error) {
	if !isoDay.MatchString(from) || !isoDay.MatchString(to) {
		return nil, invalidArg("from and to must be YYYY-MM-DD dates")
	}
	if to < from {
		return nil, invalidArg("to must not precede from")
	}
	events, err := s.Repo.ListEventsInDateRange(from, to)
	if err != nil {
		return nil, internal("list events", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// ListEvents returns one page of all watched events, open first.
func (s *AdminService) ListEvents(limit, offset int) (EventPage, error) {
	events, err := s.Repo.ListEventsPage(limit, offset)
	if err != nil {
		return EventPage{}, internal("list events", err)
	}
	total, err := s.Repo.CountEvents()
	if err != nil {
		return EventPage{}, internal("count events", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return EventPage{Events: events, Total: total}, nil
}

// GetEventDetail returns one event with its subscriber count and the
// engine's consecutive scrape-failure streak.
func (s *AdminService) GetEventDetail(numero int64) (EventDetail, error) {
	if numero <= 0 {
		return EventDetail{}, invalidArg("numero must be a positive integer")
	}
	ev, err := s.Repo.GetEvent(numero)
	if errors.Is(err, state.ErrNotFound) {
		return EventDetail{}, notFound("event not found")
	}
	if err != nil {
		return EventDetail{}, internal("get event", err)
	}
	subs, err := s.Repo.CountSubscribers(numero)
	if err != nil {
		return EventDetail{}, internal("count subscribers", err)
	}
	return EventDetail{
		Event:               ev,
		Subscribers:         subs,
		ConsecutiveFailures: s.Engine.ConsecutiveFailures(numero),
	}, nil
}

// ForceCheck polls one event immediately and returns the refreshed row.
func (s *AdminService) ForceCheck(ctx context.Context, numero int64) (model.Event, error) {
	if numero <= 0 {
		return model.Event{}, invalidArg("numero must be a positive integer")
	}
	ev, err := s.Checker.CheckNow(ctx, numero)
	if errors.Is(err, state.ErrNotFound) {
		return model.Event{}, notFound("event not found")
	}
	if err != nil {
		return model.Event{}, internal("check event", err)
	}
	return ev, nil
}
