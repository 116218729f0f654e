package service

import (
	"context"
	"errors"

	"github.com/hoofs-app/hoofs/internal/model"
	"github.com/hoofs-app/hoofs/internal/notify"
	"github.com/hoofs-app/hoofs/internal/state"
)

// TestSendResult reports one test delivery attempt. Message carries the
// adapter detail verbatim (provider id, "token no longer valid", ...).
type TestSendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendTest delivers a test notification to one user over the named channel.
func (s *AdminService) SendTest(ctx context.Context, channel, userID string) (TestSendResult, error) {
	var adapter notify.Adapter
	switch channel {
	case model.ChannelPush:
		adapter = s.Push
	case model.ChannelEmail:
		adapter = s.Email
	default:
		return TestSendResult{}, invalidArg("unknown channel " + channel)
	}
	if adapter == nil || !adapter.Enabled() {
		return TestSendResult{}, providerDisabled(channel + " channel is not configured")
	}
	if userID == "" {
		return TestSendResult{}, invalidArg("user_id is required")
	}

	profile, err := s.Repo.GetUserProfile(userID)
	if errors.Is(err, state.ErrNotFound) {
		return TestSendResult{}, notFound("user not found")
	}
	if err != nil {
		return TestSendResult{}, internal("load user", err)
	}

	res := adapter.SendTest(ctx, profile)
	return TestSendResult{Success: res.OK, Message: res.Detail}, nil
}
