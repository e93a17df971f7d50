package dto

import (
	"encoding/json"

	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/notify"
)

// LoginRequest payload for the console login form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse tells the console where to go after login.
type LoginResponse struct {
	Redirect string      `json:"redirect"`
	Role     domain.Role `json:"role"`
	Email    string      `json:"email,omitempty"`
}

// LogoutResponse tells the console where to go after logout.
type LogoutResponse struct {
	Redirect string `json:"redirect"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	Role          domain.Role `json:"role"`
	Email         string      `json:"email,omitempty"`
	Location      string      `json:"location"`
	LoggingOut    bool        `json:"logging_out"`
}

// PageResponse is returned by pages that render no remote data.
type PageResponse struct {
	Screen  string `json:"screen"`
	Message string `json:"message,omitempty"`
}

// ScreenResponse wraps data fetched from the booking API for one screen.
type ScreenResponse struct {
	Screen string          `json:"screen"`
	Data   json.RawMessage `json:"data"`
}

// NotificationsResponse lists recent toasts, oldest first.
type NotificationsResponse struct {
	Data []notify.Notification `json:"data"`
}
