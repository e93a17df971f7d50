package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/events"
	"github.com/spec-kit/pod-console/internal/storage"
)

// RoleStore is the single source of truth for the current role. It mirrors
// every change to storage and follows logouts made by other console processes.
type RoleStore struct {
	store        storage.Storage
	navigator    Navigator
	hardRedirect HardRedirector
	dispatcher   events.Dispatcher
	loginPath    string
	logger       *zap.Logger

	mu        sync.RWMutex
	role      domain.Role
	ready     bool
	listeners []func(domain.Role)
	cancel    context.CancelFunc
}

// RoleStoreDependencies bundles collaborators of the role store.
type RoleStoreDependencies struct {
	Storage      storage.Storage
	Navigator    Navigator
	HardRedirect HardRedirector
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewRoleStore builds an uninitialized store; call Init before use.
func NewRoleStore(loginPath string, deps RoleStoreDependencies) *RoleStore {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleStore{
		store:        deps.Storage,
		navigator:    deps.Navigator,
		hardRedirect: deps.HardRedirect,
		dispatcher:   deps.Dispatcher,
		loginPath:    loginPath,
		logger:       logger,
	}
}

// Init loads the persisted role and subscribes to storage changes.
func (s *RoleStore) Init(ctx context.Context) error {
	role := s.load(ctx)

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := s.store.Watch(watchCtx, s.handleStorageEvent); err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.role = role
	s.ready = true
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Debug("role store initialized", zap.String("role", role.String()))
	return nil
}

// Close stops following storage changes.
func (s *RoleStore) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Role returns the current role. Calling it on a store that was never
// initialized is a wiring bug and panics.
func (s *RoleStore) Role() domain.Role {
	if s == nil {
		panic("session: Role called on nil RoleStore")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		panic("session: Role called before RoleStore.Init")
	}
	return s.role
}

// SetRole updates the role and mirrors it to storage. An empty role removes
// the persisted key.
func (s *RoleStore) SetRole(ctx context.Context, role domain.Role) {
	s.apply(role)
	s.mirror(ctx, role)
}

// Reload re-reads the persisted role, discarding the in-memory value.
func (s *RoleStore) Reload(ctx context.Context) {
	s.apply(s.load(ctx))
}

// Subscribe registers fn to run after every role change.
func (s *RoleStore) Subscribe(fn func(domain.Role)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *RoleStore) apply(role domain.Role) {
	s.mu.Lock()
	changed := s.role != role
	s.role = role
	s.ready = true
	listeners := append([]func(domain.Role){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(role)
	}
}

func (s *RoleStore) load(ctx context.Context) domain.Role {
	raw, ok, err := s.store.Get(ctx, domain.KeyRole)
	if err != nil {
		s.logger.Warn("read persisted role", zap.Error(err))
		return domain.RoleNone
	}
	if !ok {
		return domain.RoleNone
	}
	return domain.ParseRole(raw)
}

func (s *RoleStore) mirror(ctx context.Context, role domain.Role) {
	var err error
	if role.IsSet() {
		err = s.store.Set(ctx, domain.KeyRole, role.String())
	} else {
		err = s.store.Remove(ctx, domain.KeyRole)
	}
	if err != nil {
		s.logger.Warn("mirror role to storage", zap.Error(err))
	}
}

// handleStorageEvent follows a logout performed elsewhere: the role is
// cleared and the console reloads on the login page.
func (s *RoleStore) handleStorageEvent(event storage.Event) {
	if event.Key != domain.KeyRole && event.Key != domain.KeyToken {
		return
	}
	if !event.Removed() {
		return
	}

	ctx := context.Background()
	s.logger.Info("logout detected in another console", zap.String("key", event.Key))
	s.SetRole(ctx, domain.RoleNone)
	redirect(s.navigator, s.hardRedirect, s.loginPath, NavigateOptions{Replace: true, Hard: true})

	if s.dispatcher != nil {
		if err := s.dispatcher.Publish(ctx, events.Event{
			Type:   events.EventCrossTabLogout,
			Reason: event.Key,
			Path:   s.loginPath,
		}); err != nil {
			s.logger.Warn("publish cross tab logout", zap.Error(err))
		}
	}
}
