package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/pod-console/internal/auth"
	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/events"
	"github.com/spec-kit/pod-console/internal/notify"
	"github.com/spec-kit/pod-console/internal/storage"
)

const testToken = "a.eyJleHAiOjB9.c"

func login(t *testing.T, tb *tab, role domain.Role) string {
	t.Helper()
	target, err := tb.mgr.Login(context.Background(), domain.LoginResult{
		Token: testToken,
		Role:  role,
		Email: "ops@pods.example",
	})
	require.NoError(t, err)
	return target
}

func TestExpireIsAtMostOnce(t *testing.T) {
	tb := newSingleTab(t)
	login(t, tb, domain.RoleAdmin)

	var wg sync.WaitGroup
	started := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- tb.mgr.HandleSessionExpired()
		}()
	}
	wg.Wait()
	close(started)

	wins := 0
	for ok := range started {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, tb.notes.all(), 1)
	assert.Len(t, tb.sched.scheduled(), 1)
	assert.True(t, tb.mgr.Handling())
}

func TestExpireSequence(t *testing.T) {
	ctx := context.Background()
	tb := newSingleTab(t)
	login(t, tb, domain.RoleManager)
	tb.nav.visit("/bookings")

	require.True(t, tb.mgr.Expire(ReasonTokenExpired))

	// Nothing is cleared before the delay elapses.
	assert.True(t, tb.mgr.HasToken(ctx))
	assert.Equal(t, domain.RoleManager, tb.roles.Role())

	lastPath, _, _ := tb.store.Get(ctx, domain.KeyLastPath)
	assert.Equal(t, "/bookings", lastPath)
	email, _, _ := tb.store.Get(ctx, domain.KeyEmail)
	assert.Equal(t, "ops@pods.example", email)

	notes := tb.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelWarning, notes[0].Level)
	assert.Equal(t, MessageSessionExpired, notes[0].Message)

	require.Equal(t, 1, tb.sched.fire())

	assert.False(t, tb.mgr.HasToken(ctx))
	assert.Equal(t, domain.RoleNone, tb.roles.Role())
	assert.False(t, tb.mgr.Handling())
	calls := tb.nav.history()
	require.Len(t, calls, 1)
	assert.Equal(t, navCall{path: "/login", opts: NavigateOptions{Replace: true}}, calls[0])

	// The flag is released so the next expiry is handled again.
	assert.True(t, tb.mgr.Expire(ReasonTokenExpired))
}

func TestLogoutDelayMatchesNoticeDuration(t *testing.T) {
	tb := newSingleTab(t)
	login(t, tb, domain.RoleAdmin)
	require.True(t, tb.mgr.HandleSessionExpired())

	tasks := tb.sched.scheduled()
	require.Len(t, tasks, 1)
	notes := tb.notes.all()
	require.Len(t, notes, 1)

	assert.Equal(t, 3000*time.Millisecond, DefaultNoticeDuration)
	assert.Equal(t, DefaultNoticeDuration, tb.mgr.NoticeDuration())
	assert.Equal(t, notes[0].AutoClose, tasks[0].delay)
	assert.Equal(t, DefaultNoticeDuration, tasks[0].delay)
}

func TestExpireReasons(t *testing.T) {
	tests := []struct {
		reason    Reason
		level     notify.Level
		message   string
		silent    bool
		hard      bool
		wantDelay time.Duration
	}{
		{ReasonTokenExpired, notify.LevelWarning, MessageSessionExpired, false, false, DefaultNoticeDuration},
		{ReasonMalformedToken, notify.LevelError, MessageMalformedToken, false, false, DefaultNoticeDuration},
		{ReasonForbidden, notify.LevelWarning, MessageForbidden, false, true, DefaultNoticeDuration},
		{ReasonRealtimeRejected, notify.LevelWarning, MessageRealtimeRejected, false, true, DefaultNoticeDuration},
		{ReasonUnauthorized, "", "", true, true, 0},
	}
	for _, tc := range tests {
		t.Run(string(tc.reason), func(t *testing.T) {
			tb := newSingleTab(t)
			login(t, tb, domain.RoleAdmin)

			require.True(t, tb.mgr.Expire(tc.reason))
			notes := tb.notes.all()
			if tc.silent {
				assert.Empty(t, notes)
			} else {
				require.Len(t, notes, 1)
				assert.Equal(t, tc.level, notes[0].Level)
				assert.Equal(t, tc.message, notes[0].Message)
			}
			assert.Equal(t, tc.wantDelay, tb.sched.scheduled()[0].delay)

			tb.sched.fire()
			calls := tb.nav.history()
			require.Len(t, calls, 1)
			assert.Equal(t, tc.hard, calls[0].opts.Hard)
			assert.False(t, tb.mgr.HasToken(context.Background()))
		})
	}
}

func TestLoginDuringPendingWindowIsWiped(t *testing.T) {
	ctx := context.Background()
	tb := newSingleTab(t)
	login(t, tb, domain.RoleAdmin)

	require.True(t, tb.mgr.HandleSessionExpired())
	login(t, tb, domain.RoleManager)
	tb.sched.fire()

	assert.False(t, tb.mgr.HasToken(ctx))
	assert.Equal(t, domain.RoleNone, tb.roles.Role())
}

func TestLoginReturnsBreadcrumbOnce(t *testing.T) {
	ctx := context.Background()
	tb := newSingleTab(t)

	assert.Equal(t, "/dashboard", login(t, tb, domain.RoleStaff))

	tb.nav.visit("/pods")
	require.True(t, tb.mgr.HandleSessionExpired())
	tb.sched.fire()

	assert.Equal(t, "/pods", login(t, tb, domain.RoleStaff))
	_, ok, err := tb.store.Get(ctx, domain.KeyLastPath)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "/dashboard", login(t, tb, domain.RoleStaff))
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	tb := newSingleTab(t)
	_, err := tb.mgr.Login(context.Background(), domain.LoginResult{Role: domain.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, domain.RoleNone, tb.roles.Role())
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	tb := newSingleTab(t)
	login(t, tb, domain.RoleAdmin)

	var published []events.Event
	tb.dispatcher.Subscribe(events.EventLoggedOut, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})

	tb.mgr.Logout(ctx)

	assert.False(t, tb.mgr.HasToken(ctx))
	assert.Equal(t, domain.RoleNone, tb.mgr.Role())
	assert.Empty(t, tb.mgr.Email(ctx))
	assert.Empty(t, tb.notes.all())
	require.Len(t, published, 1)
	assert.Equal(t, domain.RoleAdmin, published[0].Role)
}

func TestCloseAbandonsPendingLogout(t *testing.T) {
	ctx := context.Background()
	tb := newSingleTab(t)
	login(t, tb, domain.RoleAdmin)

	require.True(t, tb.mgr.HandleSessionExpired())
	tb.mgr.Close()

	assert.Zero(t, tb.sched.fire())
	assert.True(t, tb.mgr.HasToken(ctx))
	assert.False(t, tb.mgr.HandleSessionExpired())
}

func TestHardRedirectFallback(t *testing.T) {
	store := storage.NewMemoryOrigin().Open()
	var redirects []string
	hard := func(path string) { redirects = append(redirects, path) }

	roles := NewRoleStore("/login", RoleStoreDependencies{Storage: store, HardRedirect: hard})
	require.NoError(t, roles.Init(context.Background()))
	t.Cleanup(roles.Close)

	sched := &manualScheduler{}
	mgr, err := NewManager(Config{}, Dependencies{
		Tokens:       auth.NewTokenStore(store, nil),
		Roles:        roles,
		Storage:      store,
		HardRedirect: hard,
		Scheduler:    sched,
	})
	require.NoError(t, err)

	require.True(t, mgr.HandleSessionExpired())
	sched.fire()
	assert.Equal(t, []string{"/login"}, redirects)
}

func TestNewManagerValidates(t *testing.T) {
	store := storage.NewMemoryOrigin().Open()
	roles := NewRoleStore("/login", RoleStoreDependencies{Storage: store})

	_, err := NewManager(Config{}, Dependencies{Storage: store, Roles: roles})
	require.Error(t, err)

	_, err = NewManager(Config{}, Dependencies{
		Tokens:  auth.NewTokenStore(store, nil),
		Roles:   roles,
		Storage: store,
	})
	require.Error(t, err, "needs a navigator or a hard redirect")
}

func TestSessionExpiredEventPublished(t *testing.T) {
	tb := newSingleTab(t)
	login(t, tb, domain.RoleManager)

	var got []events.Event
	tb.dispatcher.Subscribe(events.EventSessionExpired, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	tb.mgr.Expire(ReasonForbidden)
	tb.sched.fire()

	require.Len(t, got, 1)
	assert.Equal(t, string(ReasonForbidden), got[0].Reason)
	assert.Equal(t, domain.RoleManager, got[0].Role)
}

func TestZeroDelayLogoutReleasesTimer(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryOrigin().Open()
	nav := &recordingNavigator{current: "/bookings"}
	roles := NewRoleStore("/login", RoleStoreDependencies{Storage: store, Navigator: nav})
	require.NoError(t, roles.Init(ctx))
	t.Cleanup(roles.Close)

	mgr, err := NewManager(Config{}, Dependencies{
		Tokens:    auth.NewTokenStore(store, nil),
		Roles:     roles,
		Storage:   store,
		Navigator: nav,
	})
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	for i := 0; i < 20; i++ {
		_, err := mgr.Login(ctx, domain.LoginResult{Token: testToken, Role: domain.RoleAdmin})
		require.NoError(t, err)
		require.True(t, mgr.Expire(ReasonUnauthorized))
		require.Eventually(t, func() bool { return !mgr.Handling() }, time.Second, time.Millisecond)
		assert.False(t, mgr.hasPendingTimer(), "finished logout left its timer behind")
	}
	assert.False(t, mgr.HasToken(ctx))
}

func TestEachSequenceReleasesItsTimer(t *testing.T) {
	tb := newSingleTab(t)

	for i := 0; i < 3; i++ {
		login(t, tb, domain.RoleAdmin)
		require.True(t, tb.mgr.Expire(ReasonForbidden))
		require.True(t, tb.mgr.hasPendingTimer())
		require.Equal(t, 1, tb.sched.fire())
		assert.False(t, tb.mgr.hasPendingTimer())
	}
}

func TestForbiddenUsesSessionExpiredText(t *testing.T) {
	tb := newSingleTab(t)
	login(t, tb, domain.RoleAdmin)

	require.True(t, tb.mgr.Expire(ReasonForbidden))
	notes := tb.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Your session has expired. Please login again", notes[0].Message)
}
