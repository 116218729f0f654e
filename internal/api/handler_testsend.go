package api

import (
	"net/http"

	"github.com/hoofs-app/hoofs/internal/service"
)

type testSendRequest struct {
	UserID string `json:"user_id"`
}

// HandleTestSend returns a handler for POST /api/test/{push,email}. A send
// the provider rejected is still a 200; success=false carries the adapter
// detail so operators can see why a channel is dead.
func HandleTestSend(svc *service.AdminService, channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testSendRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		res, err := svc.SendTest(r.Context(), channel, req.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}
