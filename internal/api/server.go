package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/service"
)

// Server wraps the HTTP server and mux for the Hoofs admin API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
func NewServer(port int, adminToken string, svc *service.AdminService, apiMaxBodyBytes int64) *Server {
	return NewServerWithAddress("", port, adminToken, svc, apiMaxBodyBytes)
}

// NewServerWithAddress creates a new API server with an explicit listen address.
func NewServerWithAddress(
	listenAddress string,
	port int,
	adminToken string,
	svc *service.AdminService,
	apiMaxBodyBytes int64,
) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz(svc))

	// Authenticated routes
	authed := http.NewServeMux()

	// Stats.
	authed.Handle("GET /api/stats", HandleStats(svc))
	authed.Handle("GET /api/stats/activity", HandleActivity(svc))

	// Events.
	authed.Handle("GET /api/events", HandleListEvents(svc))
	authed.Handle("GET /api/events/{numero}", HandleGetEvent(svc))
	authed.Handle("POST /api/events/{numero}/check", HandleCheckEvent(svc))

	// Subscriptions.
	authed.Handle("POST /api/subscriptions", HandleCreateSubscription(svc))
	authed.Handle("DELETE /api/subscriptions/{user_id}/{numero}", HandleDeleteSubscription(svc))

	// Users.
	authed.Handle("PUT /api/users/{id}", HandleUpsertUser(svc))

	// Channel test sends.
	authed.Handle("POST /api/test/push", HandleTestSend(svc, model.ChannelPush))
	authed.Handle("POST /api/test/email", HandleTestSend(svc, model.ChannelEmail))

	limitedAuthed := RequestBodyLimitMiddleware(apiMaxBodyBytes, authed)
	mux.Handle("/api/", AuthMiddleware(adminToken, limitedAuthed))

	srv := &http.Server{
		Addr:    net.JoinHostPort(listenAddress, strconv.Itoa(port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
