package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func TestMemoryTabsShareData(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	a, b := origin.Open(), origin.Open()

	require.NoError(t, a.Set(ctx, "token", "abc"))

	val, ok, err := b.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", val)

	require.NoError(t, b.Remove(ctx, "token"))
	_, ok, err = a.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryEventsSkipWriter(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	a, b := origin.Open(), origin.Open()

	var seenA, seenB eventLog
	require.NoError(t, a.Watch(ctx, seenA.handle))
	require.NoError(t, b.Watch(ctx, seenB.handle))

	require.NoError(t, a.Set(ctx, "userRole", "Admin"))
	require.NoError(t, a.Remove(ctx, "userRole"))

	assert.Empty(t, seenA.snapshot())
	events := seenB.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, Event{Key: "userRole", NewValue: "Admin", Source: a.ID()}, events[0])
	assert.Equal(t, "Admin", events[1].OldValue)
	assert.True(t, events[1].Removed())
}

func TestMemoryNoEventWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	a, b := origin.Open(), origin.Open()

	var seen eventLog
	require.NoError(t, b.Watch(ctx, seen.handle))

	require.NoError(t, a.Remove(ctx, "token"))
	require.NoError(t, a.Set(ctx, "token", "t1"))
	require.NoError(t, a.Set(ctx, "token", "t1"))

	assert.Len(t, seen.snapshot(), 1)
}

func TestMemoryWatchStopsWithContext(t *testing.T) {
	origin := NewMemoryOrigin()
	a, b := origin.Open(), origin.Open()

	ctx, cancel := context.WithCancel(context.Background())
	var seen eventLog
	require.NoError(t, b.Watch(ctx, seen.handle))
	cancel()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.handlers) == 0
	}, testWait, testTick)

	require.NoError(t, a.Set(context.Background(), "k", "v"))
	assert.Empty(t, seen.snapshot())
}

func TestMemoryClosedTab(t *testing.T) {
	ctx := context.Background()
	tab := NewMemoryOrigin().Open()
	require.NoError(t, tab.Close())

	_, _, err := tab.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, tab.Set(ctx, "token", "x"), ErrClosed)
	assert.ErrorIs(t, tab.Ping(ctx), ErrClosed)
}
