// Package realtime keeps the console subscribed to the API's live update
// channel and treats an authentication rejection there like any other
// session failure.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/notify"
	"github.com/spec-kit/pod-console/internal/session"
)

// Close codes the realtime server uses to reject credentials.
const (
	CloseMissingCredential = 4001
	CloseInvalidCredential = 4002
)

const (
	handshakeTimeout       = 10 * time.Second
	authErrorBodyMaxLength = 256
)

// TokenSource supplies the bearer token used for the handshake.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Expirer starts a forced logout.
type Expirer interface {
	Expire(reason session.Reason) bool
}

// Envelope is one message from the live channel.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RejectedError reports that the realtime server refused the session.
// Exactly one of StatusCode and CloseCode is set unless Heuristic is true.
type RejectedError struct {
	StatusCode int
	CloseCode  int
	Reason     string
	Heuristic  bool
}

func (e *RejectedError) Error() string {
	switch {
	case e.StatusCode != 0:
		if e.Reason == "" {
			return fmt.Sprintf("realtime handshake rejected (status=%d)", e.StatusCode)
		}
		return fmt.Sprintf("realtime handshake rejected (status=%d): %s", e.StatusCode, e.Reason)
	case e.CloseCode != 0:
		return fmt.Sprintf("realtime connection closed (code=%d): %s", e.CloseCode, e.Reason)
	default:
		return "realtime session rejected: " + e.Reason
	}
}

// IsRejected reports whether err is an authentication rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

// Client holds one live connection. It does not reconnect.
type Client struct {
	serverURL string
	tokens    TokenSource
	expirer   Expirer
	notifier  notify.Notifier
	dialer    *websocket.Dialer
	logger    *zap.Logger

	mu        sync.Mutex
	connected bool
}

// Dependencies bundles collaborators of the client.
type Dependencies struct {
	Tokens   TokenSource
	Expirer  Expirer
	Notifier notify.Notifier
	Dialer   *websocket.Dialer
	Logger   *zap.Logger
}

// NewClient creates a client for serverURL (ws:// or wss://).
func NewClient(serverURL string, deps Dependencies) *Client {
	if deps.Dialer == nil {
		deps.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NotifierFunc(func(notify.Notification) {})
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Client{
		serverURL: serverURL,
		tokens:    deps.Tokens,
		expirer:   deps.Expirer,
		notifier:  deps.Notifier,
		dialer:    deps.Dialer,
		logger:    deps.Logger,
	}
}

// Connected reports whether the connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run connects and reads until ctx is cancelled or the connection ends.
// Without a stored token it returns immediately. A rejection forces a logout
// and is returned as *RejectedError.
func (c *Client) Run(ctx context.Context) error {
	token, ok := c.tokens.Token(ctx)
	if !ok {
		c.logger.Debug("no session token, realtime disabled")
		return nil
	}

	err := c.connectAndServe(ctx, token)
	if ctx.Err() != nil {
		return nil
	}
	if IsRejected(err) {
		c.logger.Warn("realtime rejected session", zap.Error(err))
		if c.expirer != nil {
			c.expirer.Expire(session.ReasonRealtimeRejected)
		}
		return err
	}
	if err != nil {
		c.logger.Warn("realtime connection lost", zap.Error(err))
	}
	return err
}

func (c *Client) connectAndServe(ctx context.Context, token string) error {
	target, err := withToken(c.serverURL, token)
	if err != nil {
		return err
	}
	header := http.Header{"Authorization": {"Bearer " + token}}

	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, authErrorBodyMaxLength))
				return &RejectedError{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(body))}
			}
		}
		return classify(fmt.Errorf("dial: %w", err))
	}

	c.setConnected(true)
	defer func() {
		conn.Close()
		c.setConnected(false)
	}()
	c.logger.Info("realtime connected", zap.String("url", c.serverURL))

	stop := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return classify(err)
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("invalid realtime message", zap.Error(err))
		return
	}
	if env.Type == "" {
		return
	}
	c.notifier.Notify(notify.Notification{
		Level:   notify.LevelInfo,
		Message: describe(env),
	})
}

// describe prefers a payload message over the bare event type.
func describe(env Envelope) string {
	var payload struct {
		Message string `json:"message"`
	}
	if len(env.Payload) > 0 && json.Unmarshal(env.Payload, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.ReplaceAll(env.Type, "_", " ")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// classify turns credential close codes into RejectedError. Servers that do
// not send those codes are matched on their error text as a last resort.
func classify(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case CloseMissingCredential, CloseInvalidCredential:
			return &RejectedError{CloseCode: closeErr.Code, Reason: closeErr.Text}
		}
	}
	text := strings.ToLower(err.Error())
	if strings.Contains(text, "jwt expired") || strings.Contains(text, "token expired") {
		return &RejectedError{Reason: err.Error(), Heuristic: true}
	}
	return err
}

func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
