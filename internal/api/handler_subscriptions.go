package api

import (
	"net/http"

	"github.com/hoofs-app/hoofs/internal/service"
)

type createSubscriptionRequest struct {
	UserID string `json:"user_id"`
	Numero int64  `json:"numero"`
}

type subscriptionResponse struct {
	UserID      string `json:"user_id"`
	EventNumero int64  `json:"event_numero"`
	Created     bool   `json:"created"`
}

// HandleCreateSubscription returns a handler for POST /api/subscriptions.
// Creating an existing subscription is not an error; the response reports
// whether a new row was written.
func HandleCreateSubscription(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSubscriptionRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		created, err := svc.Subscribe(req.UserID, req.Numero)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		WriteJSON(w, status, subscriptionResponse{
			UserID:      req.UserID,
			EventNumero: req.Numero,
			Created:     created,
		})
	}
}

// HandleDeleteSubscription returns a handler for DELETE /api/subscriptions/{user_id}/{numero}.
func HandleDeleteSubscription(svc *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := PathParam(r, "user_id")
		numero, ok := requireNumeroPathParam(w, r)
		if !ok {
			return
		}
		if err := svc.Unsubscribe(userID, numero); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
