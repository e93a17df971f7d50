package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryOrigin is a process-local storage area shared by any number of tabs.
type MemoryOrigin struct {
	mu   sync.Mutex
	data map[string]string
	tabs map[string]*MemoryTab
}

// NewMemoryOrigin creates an empty origin.
func NewMemoryOrigin() *MemoryOrigin {
	return &MemoryOrigin{
		data: make(map[string]string),
		tabs: make(map[string]*MemoryTab),
	}
}

// Open returns a new tab view on the origin.
func (o *MemoryOrigin) Open() *MemoryTab {
	tab := &MemoryTab{id: uuid.NewString(), origin: o}
	o.mu.Lock()
	o.tabs[tab.id] = tab
	o.mu.Unlock()
	return tab
}

// MemoryTab is one writer on a MemoryOrigin.
type MemoryTab struct {
	id     string
	origin *MemoryOrigin

	mu       sync.Mutex
	handlers map[int]Handler
	nextID   int
	closed   bool
}

var _ Storage = (*MemoryTab)(nil)

// ID identifies the tab in emitted events.
func (t *MemoryTab) ID() string {
	return t.id
}

func (t *MemoryTab) Get(_ context.Context, key string) (string, bool, error) {
	if t.isClosed() {
		return "", false, ErrClosed
	}
	t.origin.mu.Lock()
	defer t.origin.mu.Unlock()
	val, ok := t.origin.data[key]
	return val, ok, nil
}

func (t *MemoryTab) Set(_ context.Context, key, value string) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.origin.write(t, key, value, false)
	return nil
}

func (t *MemoryTab) Remove(_ context.Context, key string) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.origin.write(t, key, "", true)
	return nil
}

func (t *MemoryTab) Watch(ctx context.Context, handler Handler) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.mu.Lock()
	if t.handlers == nil {
		t.handlers = make(map[int]Handler)
	}
	id := t.nextID
	t.nextID++
	t.handlers[id] = handler
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.handlers, id)
		t.mu.Unlock()
	}()
	return nil
}

func (t *MemoryTab) Ping(context.Context) error {
	if t.isClosed() {
		return ErrClosed
	}
	return nil
}

func (t *MemoryTab) Close() error {
	t.mu.Lock()
	t.closed = true
	t.handlers = nil
	t.mu.Unlock()

	t.origin.mu.Lock()
	delete(t.origin.tabs, t.id)
	t.origin.mu.Unlock()
	return nil
}

func (t *MemoryTab) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *MemoryTab) deliver(event Event) {
	t.mu.Lock()
	handlers := make([]Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// write applies the change and notifies every other tab. Handlers run on the
// writer's goroutine after the origin lock is released.
func (o *MemoryOrigin) write(writer *MemoryTab, key, value string, remove bool) {
	o.mu.Lock()
	old, existed := o.data[key]
	if remove {
		delete(o.data, key)
	} else {
		o.data[key] = value
	}
	if (remove && !existed) || (!remove && existed && old == value) {
		o.mu.Unlock()
		return
	}
	targets := make([]*MemoryTab, 0, len(o.tabs))
	for id, tab := range o.tabs {
		if id != writer.id {
			targets = append(targets, tab)
		}
	}
	o.mu.Unlock()

	event := Event{Key: key, OldValue: old, NewValue: value, Source: writer.id}
	for _, tab := range targets {
		tab.deliver(event)
	}
}
