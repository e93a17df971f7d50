package events

import (
	"time"

	"github.com/spec-kit/pod-console/internal/domain"
)

// EventType enumerates session lifecycle events.
type EventType string

const (
	EventLoggedIn        EventType = "logged_in"
	EventLoggedOut       EventType = "logged_out"
	EventSessionExpired  EventType = "session_expired"
	EventCrossTabLogout  EventType = "cross_tab_logout"
	EventRequestRejected EventType = "request_rejected"
)

// Event represents a session lifecycle change in this console process.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Reason    string      `json:"reason,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	Path      string      `json:"path,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
