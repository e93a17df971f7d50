package session

import (
	"time"

	"github.com/spec-kit/pod-console/internal/notify"
)

// Reason names the trigger of a forced logout.
type Reason string

const (
	ReasonTokenExpired     Reason = "token_expired"
	ReasonMalformedToken   Reason = "malformed_token"
	ReasonForbidden        Reason = "forbidden"
	ReasonUnauthorized     Reason = "unauthorized"
	ReasonRealtimeRejected Reason = "realtime_rejected"
)

// Toast texts shown before a forced logout.
const (
	MessageSessionExpired   = "Your session has expired. Please login again"
	MessageMalformedToken   = "Error Authentication Process. Please login again"
	MessageForbidden        = MessageSessionExpired
	MessageRealtimeRejected = "Live updates rejected your session. Please login again"
)

// DefaultNoticeDuration is the toast auto-close. The logout delay is taken
// from the same value so the user can read the toast before leaving.
const DefaultNoticeDuration = 3 * time.Second

// notice returns the toast for r, or false when r logs out silently.
func (r Reason) notice(d time.Duration) (notify.Notification, bool) {
	switch r {
	case ReasonTokenExpired:
		return notify.Notification{Level: notify.LevelWarning, Message: MessageSessionExpired, AutoClose: d}, true
	case ReasonMalformedToken:
		return notify.Notification{Level: notify.LevelError, Message: MessageMalformedToken, AutoClose: d}, true
	case ReasonForbidden:
		return notify.Notification{Level: notify.LevelWarning, Message: MessageForbidden, AutoClose: d}, true
	case ReasonRealtimeRejected:
		return notify.Notification{Level: notify.LevelWarning, Message: MessageRealtimeRejected, AutoClose: d}, true
	default:
		return notify.Notification{}, false
	}
}

// rejectedByServer reports triggers that used to force a full reload.
func (r Reason) rejectedByServer() bool {
	return r == ReasonForbidden || r == ReasonUnauthorized || r == ReasonRealtimeRejected
}
