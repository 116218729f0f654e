package api

import (
	"net/http"

	"github.com/hoofs-app/hoofs/internal/service"
)

// HandleStats returns a handler for GET /api/stats.
func HandleStats(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stats)
	}
}

// HandleActivity returns a handler for GET /api/stats/activity.
func HandleActivity(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, err := ParseIntQuery(r, "hours", 24)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		buckets, err := svc.Activity(hours)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"items": buckets})
	}
}
