// Package session coordinates the console's session lifecycle: login,
// logout, token expiry detection and forced logout.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/auth"
	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/events"
	"github.com/spec-kit/pod-console/internal/notify"
	"github.com/spec-kit/pod-console/internal/storage"
)

// Config holds manager settings.
type Config struct {
	LoginPath string
	// HomePath is where a login lands when no breadcrumb was left.
	HomePath       string
	NoticeDuration time.Duration
}

// Dependencies bundles the manager's collaborators. Navigator may be nil, in
// which case HardRedirect is used.
type Dependencies struct {
	Tokens       *auth.TokenStore
	Roles        *RoleStore
	Storage      storage.Storage
	Notifier     notify.Notifier
	Navigator    Navigator
	HardRedirect HardRedirector
	Scheduler    Scheduler
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// Manager owns the forced-logout sequence and guarantees it runs at most
// once at a time no matter how many triggers fire.
type Manager struct {
	cfg          Config
	tokens       *auth.TokenStore
	roles        *RoleStore
	store        storage.Storage
	notifier     notify.Notifier
	navigator    Navigator
	hardRedirect HardRedirector
	scheduler    Scheduler
	dispatcher   events.Dispatcher
	logger       *zap.Logger

	handling atomic.Bool

	mu      sync.Mutex
	pending Timer
	// seq identifies the pending sequence so a finished one never clears
	// the timer of a later one.
	seq    uint64
	email  string
	closed bool
}

// NewManager validates dependencies and builds a manager.
func NewManager(cfg Config, deps Dependencies) (*Manager, error) {
	if deps.Tokens == nil || deps.Roles == nil || deps.Storage == nil {
		return nil, errors.New("session: tokens, roles and storage are required")
	}
	if deps.Navigator == nil && deps.HardRedirect == nil {
		return nil, errors.New("session: a navigator or hard redirect is required")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/dashboard"
	}
	if cfg.NoticeDuration <= 0 {
		cfg.NoticeDuration = DefaultNoticeDuration
	}
	if deps.Scheduler == nil {
		deps.Scheduler = realScheduler{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NotifierFunc(func(notify.Notification) {})
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Manager{
		cfg:          cfg,
		tokens:       deps.Tokens,
		roles:        deps.Roles,
		store:        deps.Storage,
		notifier:     deps.Notifier,
		navigator:    deps.Navigator,
		hardRedirect: deps.HardRedirect,
		scheduler:    deps.Scheduler,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}, nil
}

// HasToken reports whether a bearer token is stored.
func (m *Manager) HasToken(ctx context.Context) bool {
	_, ok := m.tokens.Get(ctx)
	return ok
}

// Token returns the stored bearer token.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	return m.tokens.Get(ctx)
}

// Role returns the current role.
func (m *Manager) Role() domain.Role {
	return m.roles.Role()
}

// Email returns the last known user email.
func (m *Manager) Email(ctx context.Context) string {
	m.mu.Lock()
	email := m.email
	m.mu.Unlock()
	if email != "" {
		return email
	}
	persisted, _, err := m.store.Get(ctx, domain.KeyEmail)
	if err != nil {
		return ""
	}
	return persisted
}

// Handling reports whether a forced logout is pending.
func (m *Manager) Handling() bool {
	return m.handling.Load()
}

// NoticeDuration is the toast auto-close, also used as the logout delay.
func (m *Manager) NoticeDuration() time.Duration {
	return m.cfg.NoticeDuration
}

// Login stores a fresh session and returns where the user should land:
// the path left behind by the last forced logout, or the home page.
func (m *Manager) Login(ctx context.Context, result domain.LoginResult) (string, error) {
	if result.Token == "" {
		return "", errors.New("session: login result has no token")
	}
	if err := m.tokens.Set(ctx, result.Token); err != nil {
		return "", err
	}
	m.roles.SetRole(ctx, domain.ParseRole(string(result.Role)))

	if result.Email != "" {
		m.mu.Lock()
		m.email = result.Email
		m.mu.Unlock()
		m.bestEffortSet(ctx, domain.KeyEmail, result.Email)
	}

	target := m.cfg.HomePath
	if last, ok, err := m.store.Get(ctx, domain.KeyLastPath); err == nil && ok && last != "" && last != m.cfg.LoginPath {
		target = last
		if err := m.store.Remove(ctx, domain.KeyLastPath); err != nil {
			m.logger.Debug("clear last path", zap.Error(err))
		}
	}

	m.publish(ctx, events.Event{Type: events.EventLoggedIn, Role: m.roles.Role(), Path: target})
	m.logger.Info("logged in", zap.String("role", m.roles.Role().String()))
	return target, nil
}

// Logout ends the session on the user's request.
func (m *Manager) Logout(ctx context.Context) {
	role := m.roles.Role()
	m.tokens.Clear(ctx)
	m.roles.SetRole(ctx, domain.RoleNone)
	if err := m.store.Remove(ctx, domain.KeyEmail); err != nil {
		m.logger.Debug("clear email", zap.Error(err))
	}
	m.mu.Lock()
	m.email = ""
	m.mu.Unlock()

	redirect(m.navigator, m.hardRedirect, m.cfg.LoginPath, NavigateOptions{Replace: true})
	m.publish(ctx, events.Event{Type: events.EventLoggedOut, Role: role, Path: m.cfg.LoginPath})
	m.logger.Info("logged out", zap.String("role", role.String()))
}

// HandleSessionExpired runs the forced logout for an expired token.
func (m *Manager) HandleSessionExpired() bool {
	return m.Expire(ReasonTokenExpired)
}

// Expire starts the forced logout sequence for reason. It returns false when
// a sequence is already pending or the manager is closed; the pending
// sequence is never cancelled by a later login.
func (m *Manager) Expire(reason Reason) bool {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return false
	}
	if !m.handling.CompareAndSwap(false, true) {
		m.logger.Debug("forced logout already pending", zap.String("reason", string(reason)))
		return false
	}

	ctx := context.Background()
	m.leaveBreadcrumbs(ctx)

	delay := time.Duration(0)
	if notice, ok := reason.notice(m.cfg.NoticeDuration); ok {
		m.notifier.Notify(notice)
		delay = notice.AutoClose
	}

	m.logger.Info("forcing logout",
		zap.String("reason", string(reason)),
		zap.Duration("delay", delay),
	)

	// finishExpiry takes m.mu first, so even a zero delay cannot finish
	// before pending is recorded.
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.pending = m.scheduler.AfterFunc(delay, func() { m.finishExpiry(seq, reason) })
	m.mu.Unlock()
	return true
}

func (m *Manager) finishExpiry(seq uint64, reason Reason) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	ctx := context.Background()
	role := m.roles.Role()

	m.tokens.Clear(ctx)
	m.roles.SetRole(ctx, domain.RoleNone)
	redirect(m.navigator, m.hardRedirect, m.cfg.LoginPath, NavigateOptions{
		Replace: true,
		Hard:    reason.rejectedByServer(),
	})

	m.mu.Lock()
	if m.seq == seq {
		m.pending = nil
	}
	m.mu.Unlock()
	m.handling.Store(false)

	m.publish(ctx, events.Event{
		Type:   events.EventSessionExpired,
		Reason: string(reason),
		Role:   role,
		Path:   m.cfg.LoginPath,
	})
}

// leaveBreadcrumbs saves the current path and email for the next login.
func (m *Manager) leaveBreadcrumbs(ctx context.Context) {
	if m.navigator != nil {
		if current := m.navigator.Current(); current != "" && current != m.cfg.LoginPath {
			m.bestEffortSet(ctx, domain.KeyLastPath, current)
		}
	}
	m.mu.Lock()
	email := m.email
	m.mu.Unlock()
	if email != "" {
		m.bestEffortSet(ctx, domain.KeyEmail, email)
	}
}

func (m *Manager) bestEffortSet(ctx context.Context, key, value string) {
	if err := m.store.Set(ctx, key, value); err != nil {
		m.logger.Debug("persist breadcrumb", zap.String("key", key), zap.Error(err))
	}
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Publish(ctx, event); err != nil {
		m.logger.Warn("publish session event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Close abandons a pending forced logout and rejects new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}
