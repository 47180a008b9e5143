package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore implements ports.NonceStore using Redis SET NX. It guards the
// HMAC request replay window only; durable voucher nonces live in postgres.
type NonceStore struct {
	client *goredis.Client
	prefix string
}

// NewNonceStore creates a Redis-backed store for single-use request nonces.
func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "nonce:",
	}
}

// CheckAndSet records the nonce if absent, scoped per caller. Returns true
// if the nonce is new, false if a request already used it within the TTL.
func (s *NonceStore) CheckAndSet(ctx context.Context, callerID string, nonce string, ttl time.Duration) (bool, error) {
	key := s.prefix + callerID + ":" + nonce
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, nonce was already used
			return false, nil
		}
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return result == "OK", nil
}
