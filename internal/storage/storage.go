// Package storage is the console's durable key-value layer. It plays the role
// a browser origin's local storage plays for a web client: every console
// process sharing a backend sees the same keys, and each process is told when
// another one changes them.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: closed")

// Event describes a change made by a different process or tab. An empty
// NewValue means the key was removed or blanked.
type Event struct {
	Key      string `json:"key"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Source   string `json:"source"`
}

// Removed reports whether the change cleared the key.
func (e Event) Removed() bool {
	return e.NewValue == ""
}

// Handler receives change events.
type Handler func(Event)

// Storage is implemented by every backend.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Watch delivers changes made by other writers until ctx is done.
	// Writes made through this Storage value are never delivered to it.
	Watch(ctx context.Context, handler Handler) error
	Ping(ctx context.Context) error
	Close() error
}
