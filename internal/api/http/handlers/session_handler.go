package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pod-console/internal/api/dto"
	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/notify"
	"github.com/spec-kit/pod-console/internal/session"
	apperrors "github.com/spec-kit/pod-console/pkg/util"
)

// SessionService is the session manager as seen by the HTTP surface.
type SessionService interface {
	Login(ctx context.Context, result domain.LoginResult) (string, error)
	Logout(ctx context.Context)
	HasToken(ctx context.Context) bool
	Role() domain.Role
	Email(ctx context.Context) string
	Handling() bool
}

// CredentialChecker exchanges credentials with the booking API.
type CredentialChecker interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.LoginResult, error)
}

// NotificationFeed lists recent toasts.
type NotificationFeed interface {
	Recent() []notify.Notification
}

// SessionHandler serves login, logout and session state.
type SessionHandler struct {
	sessions      SessionService
	credentials   CredentialChecker
	navigator     session.Navigator
	notifications NotificationFeed
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions SessionService, credentials CredentialChecker, navigator session.Navigator, notifications NotificationFeed) *SessionHandler {
	return &SessionHandler{
		sessions:      sessions,
		credentials:   credentials,
		navigator:     navigator,
		notifications: notifications,
	}
}

// LoginPage GET /login.
func (h *SessionHandler) LoginPage(c *fiber.Ctx) error {
	return c.JSON(dto.PageResponse{Screen: "login"})
}

// Login POST /login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	ctx := c.UserContext()
	result, err := h.credentials.Login(ctx, domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	target, err := h.sessions.Login(ctx, result)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	h.navigator.GoTo(target, session.NavigateOptions{Replace: true})

	return c.JSON(dto.LoginResponse{
		Redirect: target,
		Role:     h.sessions.Role(),
		Email:    result.Email,
	})
}

// Logout POST /logout.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	h.sessions.Logout(c.UserContext())
	return c.JSON(dto.LogoutResponse{Redirect: h.navigator.Current()})
}

// Unauthorized GET /unauthorized.
func (h *SessionHandler) Unauthorized(c *fiber.Ctx) error {
	return c.JSON(dto.PageResponse{
		Screen:  "unauthorized",
		Message: "You do not have permission to view this page",
	})
}

// Session GET /session.
func (h *SessionHandler) Session(c *fiber.Ctx) error {
	ctx := c.UserContext()
	return c.JSON(dto.SessionResponse{
		Authenticated: h.sessions.HasToken(ctx),
		Role:          h.sessions.Role(),
		Email:         h.sessions.Email(ctx),
		Location:      h.navigator.Current(),
		LoggingOut:    h.sessions.Handling(),
	})
}

// Notifications GET /notifications.
func (h *SessionHandler) Notifications(c *fiber.Ctx) error {
	items := h.notifications.Recent()
	if items == nil {
		items = []notify.Notification{}
	}
	return c.JSON(dto.NotificationsResponse{Data: items})
}
