package service

import (
	"context"
	"log"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
)

// eagerCheckTimeout bounds the background poll triggered by a subscription;
// it includes any wait on the scrape rate limiter.
const eagerCheckTimeout = 30 * time.Second

// Subscribe watches an event for a user. The event is created as a
// previsional shell if this is the first subscription to it, and a background
// poll is triggered so the caller sees scraped fields shortly after. Returns
// whether a new subscription was created; resubscribing is a no-op success.
func (s *AdminService) Subscribe(userID string, numero int64) (bool, error) {
	if userID == "" {
		return false, invalidArg("user_id is required")
	}
	if numero <= 0 {
		return false, invalidArg("numero must be a positive integer")
	}

	now := time.Now().UnixNano()
	if _, err := s.Repo.UpsertEvent(numero, model.EventPatch{}, now); err != nil {
		return false, internal("create event", err)
	}
	created, err := s.Repo.Subscribe(userID, numero, now)
	if err != nil {
		return false, internal("create subscription", err)
	}

	if s.Checker != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), eagerCheckTimeout)
			defer cancel()
			if _, err := s.Checker.CheckNow(ctx, numero); err != nil {
				log.Printf("[service] eager check of event %d: %v", numero, err)
			}
		}()
	}
	return created, nil
}

// Unsubscribe removes a user's watch on an event. The event row and its
// history stay; only the subscription goes.
func (s *AdminService) Unsubscribe(userID string, numero int64) error {
	if userID == "" {
		return invalidArg("user_id is required")
	}
	if numero <= 0 {
		return invalidArg("numero must be a positive integer")
	}

	removed, err := s.Repo.Unsubscribe(userID, numero)
	if err != nil {
		return internal("delete subscription", err)
	}
	if !removed {
		return notFound("subscription not found")
	}
	return nil
}
