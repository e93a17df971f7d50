package realtime

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/session"
	"github.com/spec-kit/pod-console/internal/storage"
)

func TestSupervisorFollowsRole(t *testing.T) {
	var dials atomic.Int32
	url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		dials.Add(1)
		_, _, _ = conn.ReadMessage()
	})
	rec := &recorder{}
	client := newClient(url, "tok", rec)
	sup := NewSupervisor(context.Background(), client)

	sup.Follow(domain.RoleAdmin)
	require.Eventually(t, client.Connected, time.Second, 5*time.Millisecond)
	sup.Follow(domain.RoleManager)

	sup.Follow(domain.RoleNone)
	require.Eventually(t, func() bool { return !client.Connected() }, time.Second, 5*time.Millisecond)

	sup.Follow(domain.RoleAdmin)
	require.Eventually(t, client.Connected, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), dials.Load())

	sup.Follow(domain.RoleNone)
	sup.Wait()
	assert.Empty(t, rec.expired())
}

func TestSupervisorSubscribedToRoleStore(t *testing.T) {
	ctx := context.Background()
	url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _, _ = conn.ReadMessage()
	})
	client := newClient(url, "tok", &recorder{})
	sup := NewSupervisor(ctx, client)

	roles := session.NewRoleStore("/login", session.RoleStoreDependencies{
		Storage:      storage.NewMemoryOrigin().Open(),
		HardRedirect: func(string) {},
	})
	require.NoError(t, roles.Init(ctx))
	t.Cleanup(roles.Close)
	roles.Subscribe(sup.Follow)

	roles.SetRole(ctx, domain.RoleStaff)
	require.Eventually(t, client.Connected, time.Second, 5*time.Millisecond)

	roles.SetRole(ctx, domain.RoleNone)
	require.Eventually(t, func() bool { return !client.Connected() }, time.Second, 5*time.Millisecond)
}
