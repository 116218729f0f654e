// Package model defines domain structs shared across the persistence layer.
package model

// Event represents one watched FFE competition, keyed by its public numero.
type Event struct {
	Numero        int64       `json:"numero"`
	Name          string      `json:"name"`
	Venue         string      `json:"venue"`
	StartDate     string      `json:"date_debut"`
	EndDate       string      `json:"date_fin"`
	Discipline    string      `json:"discipline"`
	Organizer     string      `json:"organisateur"`
	Status        EventStatus `json:"status"`
	IsOpen        bool        `json:"is_open"`
	LastCheckAtNs int64       `json:"last_check_at_ns"`
	OpenedAtNs    int64       `json:"opened_at_ns"`
	CreatedAtNs   int64       `json:"created_at_ns"`
	UpdatedAtNs   int64       `json:"updated_at_ns"`
}

// EventPatch carries scraped descriptive fields for an upsert. Empty strings
// mean "leave the stored value alone"; status and is_open are never part of a
// patch and change only through SetEventStatus.
type EventPatch struct {
	Name       string
	Venue      string
	StartDate  string
	EndDate    string
	Discipline string
	Organizer  string
}

// Snapshot is the result of scraping one event page. Fetched=false means the
// page could not be retrieved or parsed; all other fields are then zero.
type Snapshot struct {
	Numero         int64       `json:"numero"`
	Name           string      `json:"name"`
	Venue          string      `json:"venue"`
	StartDate      string      `json:"date_debut"`
	EndDate        string      `json:"date_fin"`
	Discipline     string      `json:"discipline"`
	Organizer      string      `json:"organisateur"`
	Status         EventStatus `json:"status"`
	IsOpen         bool        `json:"is_open"`
	Fetched        bool        `json:"fetched"`
	HTTPStatus     int         `json:"http_status"`
	ResponseTimeMs int64       `json:"response_time_ms"`
	CheckedAtNs    int64       `json:"checked_at_ns"`
}

// Patch extracts the descriptive fields of a snapshot for UpsertEvent.
func (s Snapshot) Patch() EventPatch {
	return EventPatch{
		Name:       s.Name,
		Venue:      s.Venue,
		StartDate:  s.StartDate,
		EndDate:    s.EndDate,
		Discipline: s.Discipline,
		Organizer:  s.Organizer,
	}
}

// Subscription links a user to an event they want to be alerted about.
type Subscription struct {
	UserID      string `json:"user_id"`
	EventNumero int64  `json:"event_numero"`
	Notified    bool   `json:"notified"`
	CreatedAtNs int64  `json:"created_at_ns"`
}

// UserProfile holds delivery identity and channel opt-ins for one user.
type UserProfile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Plan         Plan   `json:"plan"`
	PushToken    string `json:"push_token"`
	PushEnabled  bool   `json:"push_enabled"`
	EmailEnabled bool   `json:"email_enabled"`
	CreatedAtNs  int64  `json:"created_at_ns"`
}

// SubscriberProfile is a subscription row joined with its user profile,
// produced when the planner fans an opening out to unnotified subscribers.
type SubscriberProfile struct {
	UserID       string `json:"user_id"`
	EventNumero  int64  `json:"event_numero"`
	Email        string `json:"email"`
	Plan         Plan   `json:"plan"`
	PushToken    string `json:"push_token"`
	PushEnabled  bool   `json:"push_enabled"`
	EmailEnabled bool   `json:"email_enabled"`
}

// QueueEntry is one delayed notification owed to one user for one opening.
// Once Sent is true the row is terminal and kept only for audit.
type QueueEntry struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	EventNumero int64  `json:"event_numero"`
	Plan        Plan   `json:"plan"`
	SendAtNs    int64  `json:"send_at_ns"`
	Sent        bool   `json:"sent"`
	SentAtNs    int64  `json:"sent_at_ns"`
	ClaimToken  string `json:"claim_token"`
	ClaimedAtNs int64  `json:"claimed_at_ns"`
	CreatedAtNs int64  `json:"created_at_ns"`
}

// DueNotification is a claimed queue entry joined with everything the
// dispatcher needs to deliver it.
type DueNotification struct {
	Entry   QueueEntry  `json:"entry"`
	Profile UserProfile `json:"profile"`
	Event   Event       `json:"event"`
}

// CheckRecord is one poll attempt, successful or not. Append-only.
type CheckRecord struct {
	ID             int64       `json:"id"`
	EventNumero    int64       `json:"event_numero"`
	CheckedAtNs    int64       `json:"checked_at_ns"`
	StatusBefore   EventStatus `json:"status_before"`
	StatusAfter    EventStatus `json:"status_after"`
	ResponseTimeMs int64       `json:"response_time_ms"`
	Success        bool        `json:"success"`
	Detail         string      `json:"detail"`
}

// OpeningEvent records one closed-to-open transition. Append-only.
type OpeningEvent struct {
	ID                   int64       `json:"id"`
	EventNumero          int64       `json:"event_numero"`
	OpenedAtNs           int64       `json:"opened_at_ns"`
	Status               EventStatus `json:"status"`
	NotificationSentAtNs int64       `json:"notification_sent_at_ns"`
}

// NotificationRecord is one successful channel delivery. Append-only.
type NotificationRecord struct {
	ID           int64  `json:"id"`
	UserID       string `json:"user_id"`
	EventNumero  int64  `json:"event_numero"`
	Channel      string `json:"channel"`
	Plan         Plan   `json:"plan"`
	DelaySeconds int64  `json:"delay_seconds"`
	SentAtNs     int64  `json:"sent_at_ns"`
}

// GlobalStats aggregates repository counters for the stats endpoint.
type GlobalStats struct {
	TotalEvents        int64   `json:"total_events"`
	OpenEvents         int64   `json:"open_events"`
	TotalSubscriptions int64   `json:"total_subscriptions"`
	TotalUsers         int64   `json:"total_users"`
	ChecksLast24h      int64   `json:"checks_last_24h"`
	FailuresLast24h    int64   `json:"failures_last_24h"`
	OpeningsLast7d     int64   `json:"openings_last_7d"`
	NotificationsSent  int64   `json:"notifications_sent"`
	PendingQueue       int64   `json:"pending_queue"`
	SuccessRate        float64 `json:"success_rate"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
}

// ActivityBucket is one completed metrics window persisted for the activity
// endpoint.
type ActivityBucket struct {
	BucketStartUnix int64 `json:"bucket_start_unix"`
	Checks          int64 `json:"checks"`
	Failures        int64 `json:"failures"`
	Openings        int64 `json:"openings"`
	Notifications   int64 `json:"notifications"`
}
