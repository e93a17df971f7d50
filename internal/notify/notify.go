// Package notify carries user-visible toasts from the session lifecycle to
// whatever surface displays them.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level is a toast severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one toast. AutoClose is how long it stays on screen.
type Notification struct {
	ID        string        `json:"id"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	AutoClose time.Duration `json:"auto_close"`
	CreatedAt time.Time     `json:"created_at"`
}

// Notifier displays notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

const defaultFeedSize = 50

// Center logs every notification and keeps the most recent ones for the
// console's /notifications endpoint.
type Center struct {
	logger *zap.Logger
	size   int

	mu    sync.RWMutex
	items []Notification
}

// NewCenter builds a center holding up to size notifications.
func NewCenter(logger *zap.Logger, size int) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = defaultFeedSize
	}
	return &Center{logger: logger, size: size}
}

// Notify records n, filling in ID and CreatedAt when missing.
func (c *Center) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.String("id", n.ID),
		zap.String("level", string(n.Level)),
		zap.Duration("auto_close", n.AutoClose),
	}
	switch n.Level {
	case LevelError:
		c.logger.Error(n.Message, fields...)
	case LevelWarning:
		c.logger.Warn(n.Message, fields...)
	default:
		c.logger.Info(n.Message, fields...)
	}

	c.mu.Lock()
	c.items = append(c.items, n)
	if over := len(c.items) - c.size; over > 0 {
		c.items = append([]Notification(nil), c.items[over:]...)
	}
	c.mu.Unlock()
}

// Recent returns the retained notifications, oldest first.
func (c *Center) Recent() []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Notification(nil), c.items...)
}
