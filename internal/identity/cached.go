package identity

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const identityCachePrefix = "identity:"

// CachingVerifier memoizes successful Verify calls in Redis keyed by a hash
// of the token. Raw tokens are never written to Redis.
type CachingVerifier struct {
	Verifier
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCachingVerifier wraps next. A nil client or non-positive ttl returns next unchanged.
func NewCachingVerifier(next Verifier, client *redis.Client, ttl time.Duration, logger *zap.Logger) Verifier {
	if client == nil || ttl <= 0 {
		return next
	}
	return &CachingVerifier{Verifier: next, client: client, ttl: ttl, logger: logger, now: time.Now}
}

func (c *CachingVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	key := identityCacheKey(token)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Identity
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && c.now().Before(cached.ExpiresAt) {
			return &cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("identity cache read failed", zap.Error(err))
	}

	identity, err := c.Verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl
	if remaining := identity.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		if payload, err := json.Marshal(identity); err == nil {
			if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
				c.logger.Warn("identity cache write failed", zap.Error(err))
			}
		}
	}
	return identity, nil
}

func identityCacheKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return identityCachePrefix + hex.EncodeToString(sum[:])
}
