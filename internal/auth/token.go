package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/storage"
)

// ErrMalformedToken marks a token whose payload cannot be read.
var ErrMalformedToken = errors.New("malformed token")

// Claims is the subset of the token payload the console looks at. The
// signature is never checked here; the API does that.
type Claims struct {
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
	Subject   string           `json:"sub,omitempty"`
	Email     string           `json:"email,omitempty"`
}

// Expired reports whether exp lies strictly before now. A payload without
// exp never expires client-side.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Before(now)
}

// DecodeClaims base64url-decodes and parses the middle segment of token.
// Only the payload segment has to be well formed.
func DecodeClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}
	raw, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrMalformedToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: parse payload: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}

// TokenStore owns the persisted bearer token.
type TokenStore struct {
	store  storage.Storage
	logger *zap.Logger
}

// NewTokenStore builds a token store over the shared storage.
func NewTokenStore(store storage.Storage, logger *zap.Logger) *TokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenStore{store: store, logger: logger}
}

// Get returns the token. An unreachable storage reads as no token.
func (t *TokenStore) Get(ctx context.Context) (string, bool) {
	token, ok, err := t.store.Get(ctx, domain.KeyToken)
	if err != nil {
		t.logger.Warn("read token", zap.Error(err))
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Set persists token.
func (t *TokenStore) Set(ctx context.Context, token string) error {
	if err := t.store.Set(ctx, domain.KeyToken, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Clear removes the token. Failures are logged and otherwise ignored.
func (t *TokenStore) Clear(ctx context.Context) {
	if err := t.store.Remove(ctx, domain.KeyToken); err != nil {
		t.logger.Warn("clear token", zap.Error(err))
	}
}
