package api

import (
	"net/http"

	"github.com/hoofs-app/hoofs/internal/service"
)

// HandleListEvents returns a handler for GET /api/events.
// With from/to query parameters it lists events overlapping the date range;
// without them it returns a paginated listing, open events first.
func HandleListEvents(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, to := q.Get("from"), q.Get("to")
		if from != "" || to != "" {
			events, err := svc.ListEventsInRange(from, to)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			WriteJSON(w, http.StatusOK, map[string]any{"items": events})
			return
		}

		pg, ok := parsePaginationOrWriteInvalid(w, r)
		if !ok {
			return
		}
		page, err := svc.ListEvents(pg.Limit, pg.Offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WritePage(w, http.StatusOK, page.Events, int(page.Total), pg)
	}
}

// HandleGetEvent returns a handler for GET /api/events/{numero}.
func HandleGetEvent(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		numero, ok := requireNumeroPathParam(w, r)
		if !ok {
			return
		}
		detail, err := svc.GetEventDetail(numero)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, detail)
	}
}

// HandleCheckEvent returns a handler for POST /api/events/{numero}/check.
// It runs one immediate rate-limited poll and returns the refreshed event.
func HandleCheckEvent(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		numero, ok := requireNumeroPathParam(w, r)
		if !ok {
			return
		}
		ev, err := svc.ForceCheck(r.Context(), numero)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ev)
	}
}
