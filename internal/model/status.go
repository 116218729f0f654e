package model

import "fmt"

// EventStatus is the lifecycle state scraped off a competition page.
type EventStatus string

const (
	StatusPrevisional EventStatus = "previsional"
	StatusEngagement  EventStatus = "engagement"
	StatusDemande     EventStatus = "demande"
	StatusCloture     EventStatus = "cloture"
	StatusInProgress  EventStatus = "in_progress"
	StatusFinished    EventStatus = "finished"
	StatusCancelled   EventStatus = "cancelled"
	StatusClosed      EventStatus = "closed"
)

// Open reports whether entries can currently be submitted for this status.
func (s EventStatus) Open() bool {
	return s == StatusEngagement || s == StatusDemande
}

// ParseEventStatus validates a raw status string. Unknown values are
// rejected; there is exactly one status vocabulary across scraper,
// repository and API.
func ParseEventStatus(raw string) (EventStatus, error) {
	switch EventStatus(raw) {
	case StatusPrevisional, StatusEngagement, StatusDemande, StatusCloture,
		StatusInProgress, StatusFinished, StatusCancelled, StatusClosed:
		return EventStatus(raw), nil
	}
	return "", fmt.Errorf("unknown event status %q", raw)
}

// Plan is a subscription tier controlling notification delay.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
	PlanPro     Plan = "pro"
)

// ParsePlan validates a raw plan string.
func ParsePlan(raw string) (Plan, error) {
	switch Plan(raw) {
	case PlanFree, PlanPremium, PlanPro:
		return Plan(raw), nil
	}
	return "", fmt.Errorf("unknown plan %q", raw)
}

// Channel names used in the notification log.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)
