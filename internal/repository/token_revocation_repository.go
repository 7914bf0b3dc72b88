package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedTokenPrefix = "auth:revoked:jti:"
	revokedUserPrefix  = "auth:revoked:user:"
)

// TokenRevocationRepository keeps a Redis denylist of token ids and per-user
// revocation timestamps. A nil client turns every call into a no-op.
type TokenRevocationRepository struct {
	redis redis.UniversalClient
}

// NewTokenRevocationRepository creates a new TokenRevocationRepository.
func NewTokenRevocationRepository(client redis.UniversalClient) *TokenRevocationRepository {
	return &TokenRevocationRepository{redis: client}
}

// Enabled reports whether revocation is backed by Redis.
func (r *TokenRevocationRepository) Enabled() bool {
	return r != nil && r.redis != nil
}

// RevokeToken denies jti until the token would have expired anyway.
func (r *TokenRevocationRepository) RevokeToken(ctx context.Context, jti string, until time.Time) error {
	if !r.Enabled() || jti == "" {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, revokedTokenPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether jti was denied.
func (r *TokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if !r.Enabled() || jti == "" {
		return false, nil
	}
	n, err := r.redis.Exists(ctx, revokedTokenPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// RevokeUserTokens invalidates every token of userID issued before at, kept
// at millisecond precision. The marker lives for ttl, which should cover the
// longest token lifetime.
func (r *TokenRevocationRepository) RevokeUserTokens(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	if err := r.redis.Set(ctx, revokedUserPrefix+userID, at.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// UserTokensRevokedAt returns the revocation cut-off of userID, or the zero time.
func (r *TokenRevocationRepository) UserTokensRevokedAt(ctx context.Context, userID string) (time.Time, error) {
	if !r.Enabled() {
		return time.Time{}, nil
	}
	ms, err := r.redis.Get(ctx, revokedUserPrefix+userID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("load user revocation: %w", err)
	}
	return time.UnixMilli(ms), nil
}
