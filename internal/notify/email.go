package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Email sends opening alerts through the Resend REST API.
type Email struct {
	apiKey   string
	from     string
	apiURL   string
	eventURL func(int64) string
	client   *http.Client
}

// EmailOptions configures the email channel. An empty APIKey or From address
// leaves the channel disabled.
type EmailOptions struct {
	APIKey   string
	From     string
	APIURL   string
	EventURL func(int64) string
	Timeout  time.Duration
}

// NewEmail builds the email adapter.
func NewEmail(opts EmailOptions) *Email {
	e := &Email{
		apiKey:   opts.APIKey,
		from:     opts.From,
		apiURL:   opts.APIURL,
		eventURL: opts.EventURL,
		client:   newClient(opts.Timeout),
	}
	if !e.Enabled() {
		log.Printf("[notify] email channel disabled (api key or from address not configured)")
	}
	return e
}

func (e *Email) Name() string { return model.ChannelEmail }

func (e *Email) Enabled() bool { return e.apiKey != "" && e.from != "" }

type emailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type emailResponse struct {
	ID string `json:"id"`
}

// SendOpening emails one user that one competition just opened.
func (e *Email) SendOpening(ctx context.Context, user model.UserProfile, event model.Event) Result {
	if !e.Enabled() {
		return Result{Detail: "email channel disabled"}
	}
	if user.Email == "" {
		return Result{Detail: "no email address on profile"}
	}

	var pageURL string
	if e.eventURL != nil {
		pageURL = e.eventURL(event.Numero)
	}
	subject, html, text, err := renderOpeningEmail(event, pageURL)
	if err != nil {
		return Result{Detail: fmt.Sprintf("render failed: %v", err)}
	}
	return e.send(ctx, emailPayload{
		From:    e.from,
		To:      []string{user.Email},
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
}

// SendTest sends a test email so users can verify their address end to end.
func (e *Email) SendTest(ctx context.Context, user model.UserProfile) Result {
	if !e.Enabled() {
		return Result{Detail: "email channel disabled"}
	}
	if user.Email == "" {
		return Result{Detail: "no email address on profile"}
	}
	return e.send(ctx, emailPayload{
		From:    e.from,
		To:      []string{user.Email},
		Subject: "🧪 Test Hoofs",
		HTML:    testEmailHTML,
		Text:    testEmailText,
	})
}

func (e *Email) send(ctx context.Context, payload emailPayload) Result {
	status, body, err := postJSON(ctx, e.client, e.apiURL, "Bearer "+e.apiKey, payload)
	if err != nil {
		log.Printf("[notify] email request failed: %v", err)
		return Result{Detail: fmt.Sprintf("email request failed: %v", err)}
	}
	if status != http.StatusOK {
		log.Printf("[notify] email provider returned http %d: %s", status, snippet(body))
		return Result{Detail: fmt.Sprintf("email provider returned http %d", status)}
	}

	var resp emailResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		return Result{OK: true, Detail: "sent"}
	}
	return Result{OK: true, Detail: resp.ID}
}

// --- templates ---

const (
	colorEngagement = "#4A7C59"
	colorDemande    = "#3D6B99"
)

type openingEmailData struct {
	Emoji  string
	Color  string
	Type   string
	Numero int64
	Name   string
	Venue  string
	Dates  string
	URL    string
}

func renderOpeningEmail(event model.Event, pageURL string) (subject, html, text string, err error) {
	data := openingEmailData{
		Emoji:  "🟢",
		Color:  colorEngagement,
		Type:   "Engagement",
		Numero: event.Numero,
		Name:   event.Name,
		Venue:  event.Venue,
		Dates:  dateRange(event),
		URL:    pageURL,
	}
	if event.Status == model.StatusDemande {
		data.Emoji = "🔵"
		data.Color = colorDemande
		data.Type = "Demande de participation"
	}
	subject = fmt.Sprintf("%s Concours %d ouvert - %s", data.Emoji, event.Numero, data.Type)

	var buf bytes.Buffer
	if err := openingEmailTmpl.Execute(&buf, data); err != nil {
		return "", "", "", err
	}
	return subject, buf.String(), openingEmailText(data), nil
}

// dateRange renders the stored ISO dates for display. A single known date
// stands alone; a missing pair renders empty so the row is dropped.
func dateRange(event model.Event) string {
	switch {
	case event.StartDate == "":
		return event.EndDate
	case event.EndDate == "" || event.EndDate == event.StartDate:
		return event.StartDate
	default:
		return event.StartDate + " au " + event.EndDate
	}
}

func openingEmailText(data openingEmailData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Concours n°%d ouvert !\n\n", data.Numero)
	fmt.Fprintf(&b, "Type d'ouverture : %s\n", data.Type)
	if data.Name != "" {
		fmt.Fprintf(&b, "Concours : %s\n", data.Name)
	}
	if data.Venue != "" {
		fmt.Fprintf(&b, "Lieu : %s\n", data.Venue)
	}
	if data.Dates != "" {
		fmt.Fprintf(&b, "Dates : %s\n", data.Dates)
	}
	if data.URL != "" {
		fmt.Fprintf(&b, "\nAccéder au concours : %s\n", data.URL)
	}
	b.WriteString("\nHoofs — Surveillance des concours FFE\n")
	return b.String()
}

var openingEmailTmpl = template.Must(template.New("opening").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #1A1A1A;">
    <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 600px; margin: 0 auto; padding: 40px 20px;">
        <tr>
            <td>
                <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background: linear-gradient(135deg, #722F37, #5A252C); border-radius: 16px 16px 0 0; padding: 30px;">
                    <tr>
                        <td align="center">
                            <h1 style="color: #F5F0E8; margin: 0; font-size: 28px; font-weight: 600;">
                                {{.Emoji}} Concours Ouvert !
                            </h1>
                        </td>
                    </tr>
                </table>

                <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #2D2D2D; padding: 30px;">
                    <tr>
                        <td>
                            <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: rgba(0,0,0,0.2); border-radius: 12px; padding: 24px; border-left: 4px solid {{.Color}};">
                                <tr>
                                    <td>
                                        <p style="color: rgba(245,240,232,0.6); font-size: 12px; text-transform: uppercase; letter-spacing: 1px; margin: 0 0 8px 0;">
                                            Numéro du concours
                                        </p>
                                        <p style="color: #F5F0E8; font-size: 32px; font-weight: 700; margin: 0;">
                                            #{{.Numero}}
                                        </p>
                                    </td>
                                </tr>
                            </table>

                            <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="margin-top: 20px;">
                                {{if .Name}}<tr>
                                    <td style="padding: 12px 0; border-bottom: 1px solid rgba(245,240,232,0.1);">
                                        <span style="color: rgba(245,240,232,0.6); font-size: 14px;">Concours</span>
                                        <span style="color: #F5F0E8; font-size: 14px; float: right;">{{.Name}}</span>
                                    </td>
                                </tr>
                                {{end}}{{if .Venue}}<tr>
                                    <td style="padding: 12px 0; border-bottom: 1px solid rgba(245,240,232,0.1);">
                                        <span style="color: rgba(245,240,232,0.6); font-size: 14px;">Lieu</span>
                                        <span style="color: #F5F0E8; font-size: 14px; float: right;">{{.Venue}}</span>
                                    </td>
                                </tr>
                                {{end}}{{if .Dates}}<tr>
                                    <td style="padding: 12px 0; border-bottom: 1px solid rgba(245,240,232,0.1);">
                                        <span style="color: rgba(245,240,232,0.6); font-size: 14px;">Dates</span>
                                        <span style="color: #F5F0E8; font-size: 14px; float: right;">{{.Dates}}</span>
                                    </td>
                                </tr>
                                {{end}}<tr>
                                    <td style="padding: 12px 0; border-bottom: 1px solid rgba(245,240,232,0.1);">
                                        <span style="color: rgba(245,240,232,0.6); font-size: 14px;">Type d'ouverture</span>
                                        <span style="color: {{.Color}}; font-size: 14px; font-weight: 600; float: right;">{{.Type}}</span>
                                    </td>
                                </tr>
                                <tr>
                                    <td style="padding: 12px 0;">
                                        <span style="color: rgba(245,240,232,0.6); font-size: 14px;">Action disponible</span>
                                        <span style="color: #F5F0E8; font-size: 14px; float: right;">Bouton "{{.Type}}" visible</span>
                                    </td>
                                </tr>
                            </table>

                            {{if .URL}}<table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="margin-top: 30px;">
                                <tr>
                                    <td align="center">
                                        <a href="{{.URL}}" style="display: inline-block; padding: 16px 32px; background: linear-gradient(135deg, #E5C76B, #C9A227); color: #1A1A1A; text-decoration: none; font-weight: 600; font-size: 16px; border-radius: 8px;">
                                            Accéder au concours →
                                        </a>
                                    </td>
                                </tr>
                            </table>{{end}}
                        </td>
                    </tr>
                </table>

                <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #1A1A1A; border-radius: 0 0 16px 16px; padding: 20px;">
                    <tr>
                        <td align="center">
                            <p style="color: rgba(245,240,232,0.4); font-size: 12px; margin: 0;">
                                🐴 Hoofs — Surveillance des concours FFE
                            </p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`))

const testEmailHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background-color: #1A1A1A;">
    <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 600px; margin: 0 auto; padding: 40px 20px;">
        <tr>
            <td>
                <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background: linear-gradient(135deg, #C9A227, #B8922A); border-radius: 16px; padding: 40px;">
                    <tr>
                        <td align="center">
                            <h1 style="color: #1A1A1A; margin: 0 0 20px 0; font-size: 24px;">
                                🧪 Test Notification
                            </h1>
                            <p style="color: rgba(26,26,26,0.8); font-size: 16px; line-height: 1.6; margin: 0;">
                                Ceci est un email de test Hoofs.<br><br>
                                Si vous recevez cet email, les notifications par email fonctionnent correctement !
                            </p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`

const testEmailText = `Ceci est un email de test Hoofs.

Si vous recevez cet email, les notifications par email fonctionnent correctement !
`
