// Package navigation tracks where the console user is and performs
// in-app redirects for the session lifecycle.
package navigation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/session"
)

// History is a browser-style location stack.
type History struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries []string
	reload  []func(context.Context)
}

var _ session.Navigator = (*History)(nil)

// NewHistory starts at start.
func NewHistory(start string, logger *zap.Logger) *History {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{logger: logger, entries: []string{start}}
}

// OnHardNavigate registers fn to run on every hard navigation, after the
// stack has been reset.
func (h *History) OnHardNavigate(fn func(context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reload = append(h.reload, fn)
}

// GoTo navigates to path.
func (h *History) GoTo(path string, opts session.NavigateOptions) {
	h.mu.Lock()
	switch {
	case opts.Hard:
		h.entries = []string{path}
	case opts.Replace && len(h.entries) > 0:
		h.entries[len(h.entries)-1] = path
	default:
		h.entries = append(h.entries, path)
	}
	hooks := append([]func(context.Context){}, h.reload...)
	h.mu.Unlock()

	h.logger.Debug("navigate",
		zap.String("path", path),
		zap.Bool("replace", opts.Replace),
		zap.Bool("hard", opts.Hard),
	)
	if !opts.Hard {
		return
	}
	ctx := context.Background()
	for _, fn := range hooks {
		fn(ctx)
	}
}

// Visit records a navigation the user made. Revisiting the current path is
// a no-op.
func (h *History) Visit(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 && h.entries[n-1] == path {
		return
	}
	h.entries = append(h.entries, path)
}

// Current returns the current location.
func (h *History) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Back pops the current entry. It reports false at the start of history.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < 2 {
		return "", false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

// Entries returns a copy of the stack, oldest first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.entries...)
}
