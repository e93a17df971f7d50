package realtime

import (
	"context"
	"sync"

	"github.com/spec-kit/pod-console/internal/domain"
)

// Supervisor ties the live connection to the session: it connects while a
// role is set and hangs up as soon as the role is cleared.
type Supervisor struct {
	client *Client
	parent context.Context

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor runs client under parent.
func NewSupervisor(parent context.Context, client *Client) *Supervisor {
	return &Supervisor{client: client, parent: parent}
}

// Follow reacts to a role change. It never blocks, so it can be registered
// with RoleStore.Subscribe.
func (s *Supervisor) Follow(role domain.Role) {
	if role.IsSet() {
		s.start()
		return
	}
	s.stop()
}

func (s *Supervisor) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer cancel()
		_ = s.client.Run(ctx)

		s.mu.Lock()
		if s.done == done {
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
	}()
}

func (s *Supervisor) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current connection attempt, if any, has ended.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
