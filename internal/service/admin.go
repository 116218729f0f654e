// Package service holds the operations behind the admin API. Handlers call
// these methods; business logic and error-code mapping live here, not in
// handlers.
package service

import (
	"context"

	"github.com/hoofs-app/hoofs/internal/buildinfo"
	"github.com/hoofs-app/hoofs/internal/engine"
	"github.com/hoofs-app/hoofs/internal/metrics"
	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/notify"
	"github.com/hoofs-app/hoofs/internal/state"
)

// ServiceError wraps an error with a code for API response mapping.
type ServiceError struct {
	Code    string // INVALID_ARGUMENT, NOT_FOUND, PROVIDER_DISABLED, INTERNAL
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

func invalidArg(msg string) *ServiceError {
	return &ServiceError{Code: "INVALID_ARGUMENT", Message: msg}
}

func notFound(msg string) *ServiceError {
	return &ServiceError{Code: "NOT_FOUND", Message: msg}
}

func providerDisabled(msg string) *ServiceError {
	return &ServiceError{Code: "PROVIDER_DISABLED", Message: msg}
}

func internal(msg string, err error) *ServiceError {
	return &ServiceError{Code: "INTERNAL", Message: msg, Err: err}
}

// Checker runs one immediate rate-limited poll of an event and returns the
// refreshed row. The watch scheduler is the production implementation.
type Checker interface {
	CheckNow(ctx context.Context, numero int64) (model.Event, error)
}

// AdminService provides all admin API operations.
type AdminService struct {
	Repo    *state.Repo
	Engine  *engine.Engine
	Metrics *metrics.Manager
	Checker Checker
	Push    notify.Adapter
	Email   notify.Adapter
}

// HealthStatus is the unauthenticated liveness payload.
type HealthStatus struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Health reports process liveness.
func (s *AdminService) Health() HealthStatus {
	return HealthStatus{
		Status:        "ok",
		Version:       buildinfo.Version,
		UptimeSeconds: s.Engine.Runtime().UptimeSeconds,
	}
}
