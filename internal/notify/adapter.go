// Package notify delivers opening alerts to users over push and email.
//
// Adapters share one contract: a single outbound POST per call, a pooled
// HTTPS client, no internal retries. Retry policy belongs to the queue that
// feeds the dispatcher, never to the channel itself.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Adapter is one delivery channel. The dispatcher fans each due notification
// out to every enabled adapter and records per-channel outcomes.
type Adapter interface {
	Name() string
	Enabled() bool
	SendOpening(ctx context.Context, user model.UserProfile, event model.Event) Result
	SendTest(ctx context.Context, user model.UserProfile) Result
}

// Result reports one delivery attempt. Detail is human-readable and safe to
// surface through the test endpoints.
type Result struct {
	OK     bool
	Detail string
}

const defaultNotifyTimeout = 10 * time.Second

func newClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// postJSON issues one JSON POST and returns the response status and body.
// authorization is the full header value, e.g. "Key x" or "Bearer y".
func postJSON(ctx context.Context, client *http.Client, url, authorization string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// snippet truncates a response body for log lines.
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
