package api

import (
	"net/http"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/service"
)

type upsertUserRequest struct {
	Email        string `json:"email"`
	Plan         string `json:"plan"`
	PushToken    string `json:"push_token"`
	PushEnabled  bool   `json:"push_enabled"`
	EmailEnabled bool   `json:"email_enabled"`
}

// HandleUpsertUser returns a handler for PUT /api/users/{id}.
// The profile id comes from the path, never from the body.
func HandleUpsertUser(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := PathParam(r, "id")

		var req upsertUserRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		stored, err := svc.UpsertUser(model.UserProfile{
			ID:           id,
			Email:        req.Email,
			Plan:         model.Plan(req.Plan),
			PushToken:    req.PushToken,
			PushEnabled:  req.PushEnabled,
			EmailEnabled: req.EmailEnabled,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stored)
	}
}
