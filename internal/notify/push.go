package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Push sends web-push notifications through the OneSignal REST API.
type Push struct {
	appID    string
	apiKey   string
	apiURL   string
	eventURL func(int64) string
	client   *http.Client
}

// PushOptions configures the push channel. An empty AppID or APIKey leaves
// the channel disabled.
type PushOptions struct {
	AppID    string
	APIKey   string
	APIURL   string
	EventURL func(int64) string
	Timeout  time.Duration
}

// NewPush builds the push adapter. A disabled channel is announced once here
// so operators see it at startup rather than per send.
func NewPush(opts PushOptions) *Push {
	p := &Push{
		appID:    opts.AppID,
		apiKey:   opts.APIKey,
		apiURL:   opts.APIURL,
		eventURL: opts.EventURL,
		client:   newClient(opts.Timeout),
	}
	if !p.Enabled() {
		log.Printf("[notify] push channel disabled (app id or api key not configured)")
	}
	return p
}

func (p *Push) Name() string { return model.ChannelPush }

func (p *Push) Enabled() bool { return p.appID != "" && p.apiKey != "" }

type pushPayload struct {
	AppID                  string            `json:"app_id"`
	IncludeSubscriptionIDs []string          `json:"include_subscription_ids"`
	Headings               map[string]string `json:"headings"`
	Contents               map[string]string `json:"contents"`
	URL                    string            `json:"url,omitempty"`
	Data                   map[string]any    `json:"data,omitempty"`
}

type pushResponse struct {
	ID         string          `json:"id"`
	Recipients int             `json:"recipients"`
	Errors     json.RawMessage `json:"errors"`
}

// SendOpening notifies one user that one competition just opened.
func (p *Push) SendOpening(ctx context.Context, user model.UserProfile, event model.Event) Result {
	if !p.Enabled() {
		return Result{Detail: "push channel disabled"}
	}
	if user.PushToken == "" {
		return Result{Detail: "no push token on profile"}
	}

	heading, content := openingPushText(event)
	payload := pushPayload{
		AppID:                  p.appID,
		IncludeSubscriptionIDs: []string{user.PushToken},
		Headings:               map[string]string{"en": heading, "fr": heading},
		Contents:               map[string]string{"en": content, "fr": content},
		Data: map[string]any{
			"event_numero": event.Numero,
			"status":       string(event.Status),
		},
	}
	if p.eventURL != nil {
		payload.URL = p.eventURL(event.Numero)
	}
	return p.send(ctx, payload)
}

// SendTest sends a test push so users can verify their token end to end.
func (p *Push) SendTest(ctx context.Context, user model.UserProfile) Result {
	if !p.Enabled() {
		return Result{Detail: "push channel disabled"}
	}
	if user.PushToken == "" {
		return Result{Detail: "no push token on profile"}
	}

	heading := "🧪 Test Hoofs"
	content := "Les notifications push fonctionnent correctement !"
	return p.send(ctx, pushPayload{
		AppID:                  p.appID,
		IncludeSubscriptionIDs: []string{user.PushToken},
		Headings:               map[string]string{"en": heading, "fr": heading},
		Contents:               map[string]string{"en": content, "fr": content},
	})
}

func (p *Push) send(ctx context.Context, payload pushPayload) Result {
	status, body, err := postJSON(ctx, p.client, p.apiURL, "Key "+p.apiKey, payload)
	if err != nil {
		log.Printf("[notify] push request failed: %v", err)
		return Result{Detail: fmt.Sprintf("push request failed: %v", err)}
	}
	if status != http.StatusOK {
		log.Printf("[notify] push provider returned http %d: %s", status, snippet(body))
		return Result{Detail: fmt.Sprintf("push provider returned http %d", status)}
	}

	var resp pushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("[notify] push response not parseable: %v (%s)", err, snippet(body))
		return Result{Detail: "push response not parseable"}
	}
	if resp.Recipients > 0 {
		return Result{OK: true, Detail: fmt.Sprintf("delivered to %d recipient(s)", resp.Recipients)}
	}
	// 200 with zero recipients means the provider accepted the request but
	// reached nobody. A stale subscription id is the common cause.
	if strings.Contains(strings.ToLower(string(resp.Errors)), "invalid") {
		return Result{Detail: "token no longer valid"}
	}
	return Result{Detail: "no recipients"}
}

func openingPushText(event model.Event) (heading, content string) {
	if event.Status == model.StatusDemande {
		heading = fmt.Sprintf("🔵 Concours %d ouvert !", event.Numero)
		content = "La demande de participation est ouverte."
		if event.Name != "" {
			content = event.Name + " : la demande de participation est ouverte."
		}
		return heading, content
	}
	heading = fmt.Sprintf("🟢 Concours %d ouvert !", event.Numero)
	content = "Les engagements sont ouverts."
	if event.Name != "" {
		content = event.Name + " : les engagements sont ouverts."
	}
	return heading, content
}
