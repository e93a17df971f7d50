package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/auth"
)

// DefaultCheckInterval is how often the token's exp claim is inspected.
const DefaultCheckInterval = time.Minute

// Expirer is the part of Manager the checker drives.
type Expirer interface {
	Expire(reason Reason) bool
}

// CheckResult is the outcome of one expiry check.
type CheckResult int

const (
	CheckNoToken CheckResult = iota
	CheckValid
	CheckExpired
	CheckMalformed
)

func (r CheckResult) String() string {
	switch r {
	case CheckNoToken:
		return "no_token"
	case CheckValid:
		return "valid"
	case CheckExpired:
		return "expired"
	case CheckMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ExpiryChecker detects an expired token without asking the server. It
// never redirects by itself; it hands expired sessions to the Expirer.
type ExpiryChecker struct {
	tokens   *auth.TokenStore
	expirer  Expirer
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewExpiryChecker builds a checker polling every interval.
func NewExpiryChecker(tokens *auth.TokenStore, expirer Expirer, interval time.Duration, logger *zap.Logger) *ExpiryChecker {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryChecker{
		tokens:   tokens,
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Check inspects the stored token once.
func (c *ExpiryChecker) Check(ctx context.Context) CheckResult {
	token, ok := c.tokens.Get(ctx)
	if !ok {
		return CheckNoToken
	}

	claims, err := auth.DecodeClaims(token)
	if err != nil {
		c.logger.Warn("stored token is malformed", zap.Error(err))
		c.expirer.Expire(ReasonMalformedToken)
		return CheckMalformed
	}
	if claims.Expired(c.now()) {
		c.logger.Info("stored token expired", zap.Time("exp", claims.ExpiresAt.Time))
		c.expirer.Expire(ReasonTokenExpired)
		return CheckExpired
	}
	return CheckValid
}

// Run checks immediately and then on every tick until ctx is done.
func (c *ExpiryChecker) Run(ctx context.Context) {
	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}
