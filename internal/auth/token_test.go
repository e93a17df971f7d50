package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/pod-console/internal/domain"
	"github.com/spec-kit/pod-console/internal/storage"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "staff-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestDecodeClaimsExpiry(t *testing.T) {
	now := time.Now()

	past, err := DecodeClaims(signedToken(t, now.Add(-time.Second)))
	require.NoError(t, err)
	assert.True(t, past.Expired(now))
	assert.Equal(t, "staff-1", past.Subject)

	future, err := DecodeClaims(signedToken(t, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, future.Expired(now))
}

func TestDecodeClaimsOnlyNeedsPayloadSegment(t *testing.T) {
	claims, err := DecodeClaims("a.eyJleHAiOjB9.c")
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, int64(0), claims.ExpiresAt.Unix())
	assert.True(t, claims.Expired(time.Now()))
}

func TestDecodeClaimsWithoutExpNeverExpires(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`))
	claims, err := DecodeClaims("h." + payload + ".s")
	require.NoError(t, err)
	assert.False(t, claims.Expired(time.Now()))
}

func TestDecodeClaimsMalformed(t *testing.T) {
	notJSON := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	tests := map[string]string{
		"no dots":        "opaque-token",
		"one dot":        "a.b",
		"too many parts": "a.b.c.d",
		"bad base64":     "a.!!!.c",
		"not json":       "a." + notJSON + ".c",
		"exp not number": "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"soon"}`)) + ".c",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClaims(token)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

type failingStorage struct {
	storage.Storage
}

func (failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("unavailable")
}

func (failingStorage) Remove(context.Context, string) error {
	return errors.New("unavailable")
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	backing := storage.NewMemoryOrigin().Open()
	tokens := NewTokenStore(backing, nil)

	_, ok := tokens.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, tokens.Set(ctx, "abc"))
	got, ok := tokens.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	raw, _, _ := backing.Get(ctx, domain.KeyToken)
	assert.Equal(t, "abc", raw)

	tokens.Clear(ctx)
	_, ok = tokens.Get(ctx)
	assert.False(t, ok)
}

func TestTokenStoreUnavailableReadsAsAbsent(t *testing.T) {
	tokens := NewTokenStore(failingStorage{}, nil)
	_, ok := tokens.Get(context.Background())
	assert.False(t, ok)
	tokens.Clear(context.Background())
}
