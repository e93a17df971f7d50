package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/events"
	"github.com/spec-kit/pod-console/internal/session"
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Expirer starts a forced logout.
type Expirer interface {
	Expire(reason session.Reason) bool
}

type anonymousKey struct{}

// Anonymous marks ctx so the authenticator neither attaches the token nor
// reacts to auth failures. Used for the login call itself.
func Anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

func isAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey{}).(bool)
	return v
}

// Authenticator is an http.RoundTripper that attaches the session token and
// turns 401/403 responses into a forced logout. The response is returned
// unchanged either way.
type Authenticator struct {
	base       http.RoundTripper
	tokens     TokenSource
	expirer    Expirer
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AuthenticatorDependencies bundles collaborators of the authenticator.
type AuthenticatorDependencies struct {
	Base       http.RoundTripper
	Tokens     TokenSource
	Expirer    Expirer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthenticator wraps deps.Base, or http.DefaultTransport when nil.
func NewAuthenticator(deps AuthenticatorDependencies) *Authenticator {
	if deps.Base == nil {
		deps.Base = http.DefaultTransport
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Authenticator{
		base:       deps.Base,
		tokens:     deps.Tokens,
		expirer:    deps.Expirer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (a *Authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	anonymous := isAnonymous(ctx)

	out := req.Clone(ctx)
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.NewString())
	}
	if !anonymous && a.tokens != nil {
		if token, ok := a.tokens.Token(ctx); ok {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.base.RoundTrip(out)
	if err != nil || anonymous {
		return resp, err
	}

	var reason session.Reason
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		reason = session.ReasonUnauthorized
	case http.StatusForbidden:
		reason = session.ReasonForbidden
	default:
		return resp, nil
	}

	a.logger.Warn("api rejected session",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", out.Header.Get("X-Request-ID")),
	)
	if a.dispatcher != nil {
		if err := a.dispatcher.Publish(ctx, events.Event{
			Type:   events.EventRequestRejected,
			Reason: strconv.Itoa(resp.StatusCode),
			Path:   req.URL.Path,
		}); err != nil {
			a.logger.Warn("publish request rejected", zap.Error(err))
		}
	}
	if a.expirer != nil {
		a.expirer.Expire(reason)
	}
	return resp, nil
}
