package api

import (
	"net/http"

	"github.com/hoofs-app/hoofs/internal/service"
)

// HandleHealthz returns a handler for GET /healthz.
// No authentication is required.
func HandleHealthz(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, svc.Health())
	}
}
