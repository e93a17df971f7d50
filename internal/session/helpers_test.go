package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/pod-console/internal/auth"
	"github.com/spec-kit/pod-console/internal/events"
	"github.com/spec-kit/pod-console/internal/notify"
	"github.com/spec-kit/pod-console/internal/storage"
)

type manualTask struct {
	delay   time.Duration
	fn      func()
	mu      sync.Mutex
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// manualScheduler queues work until the test fires it.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	task := &manualTask{delay: d, fn: f}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return task
}

func (s *manualScheduler) scheduled() []*manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*manualTask(nil), s.tasks...)
}

// fire runs every task that is neither stopped nor already fired.
func (s *manualScheduler) fire() int {
	ran := 0
	for _, task := range s.scheduled() {
		task.mu.Lock()
		runnable := !task.stopped && !task.fired
		task.fired = true
		task.mu.Unlock()
		if runnable {
			task.fn()
			ran++
		}
	}
	return ran
}

type navCall struct {
	path string
	opts NavigateOptions
}

type recordingNavigator struct {
	mu      sync.Mutex
	current string
	calls   []navCall
}

func (n *recordingNavigator) GoTo(path string, opts NavigateOptions) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
	n.calls = append(n.calls, navCall{path: path, opts: opts})
}

func (n *recordingNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *recordingNavigator) visit(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
}

func (n *recordingNavigator) history() []navCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navCall(nil), n.calls...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recordingNotifier) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.items...)
}

// tab is one console process wired the way cmd/console wires it.
type tab struct {
	store      storage.Storage
	tokens     *auth.TokenStore
	roles      *RoleStore
	nav        *recordingNavigator
	notes      *recordingNotifier
	sched      *manualScheduler
	dispatcher events.Dispatcher
	mgr        *Manager
}

func newTab(t *testing.T, store storage.Storage) *tab {
	t.Helper()
	tb := &tab{
		store:      store,
		tokens:     auth.NewTokenStore(store, nil),
		nav:        &recordingNavigator{current: "/login"},
		notes:      &recordingNotifier{},
		sched:      &manualScheduler{},
		dispatcher: events.NewInMemoryDispatcher(),
	}
	tb.roles = NewRoleStore("/login", RoleStoreDependencies{
		Storage:    store,
		Navigator:  tb.nav,
		Dispatcher: tb.dispatcher,
	})
	require.NoError(t, tb.roles.Init(context.Background()))
	t.Cleanup(tb.roles.Close)

	mgr, err := NewManager(Config{LoginPath: "/login"}, Dependencies{
		Tokens:     tb.tokens,
		Roles:      tb.roles,
		Storage:    store,
		Notifier:   tb.notes,
		Navigator:  tb.nav,
		Scheduler:  tb.sched,
		Dispatcher: tb.dispatcher,
	})
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	tb.mgr = mgr
	return tb
}

func newSingleTab(t *testing.T) *tab {
	return newTab(t, storage.NewMemoryOrigin().Open())
}

func (m *Manager) hasPendingTimer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}
