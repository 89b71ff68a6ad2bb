package model

import "time"

// Activity levels carried on the admin log stream.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// NotificationKind discriminates the two outbound channels.
type NotificationKind string

const (
	// KindActivity is an operational log line for administrators.
	KindActivity NotificationKind = "admin_log"
	// KindEventUpdate carries the full event for the public channel.
	KindEventUpdate NotificationKind = "event_update"
)

// ActivityEntry is one structured log line about a fusion sub-decision.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"type"`
	ReportID  string    `json:"report_id,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
}

// Notification is a fire-and-forget message for the notification boundary.
// Exactly one of Activity or Event is set, matching Kind.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	Activity *ActivityEntry   `json:"activity,omitempty"`
	Event    *Event           `json:"event,omitempty"`
}

// Key returns the partitioning key: the event id when known.
func (n Notification) Key() string {
	switch {
	case n.Event != nil:
		return n.Event.ID
	case n.Activity != nil:
		return n.Activity.EventID
	}
	return ""
}

// Payload returns the value that transports serialise.
func (n Notification) Payload() any {
	if n.Kind == KindEventUpdate {
		return n.Event
	}
	return n.Activity
}
