package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

// RedisNonceStore enforces single use of handshake nonces across instances.
// A nonce key is claimed with SETNX; the second claim of the same nonce fails,
// which is how a replayed OAuth callback is rejected.
type RedisNonceStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisNonceStore creates a Redis-backed nonce guard
func NewRedisNonceStore(cfg config.RedisConfig) (*RedisNonceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNonceStore{
		client:    client,
		keyPrefix: "connector:nonce:",
	}, nil
}

// NewRedisNonceStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisNonceStoreWithClient(client *redis.Client, keyPrefix string) *RedisNonceStore {
	if keyPrefix == "" {
		keyPrefix = "connector:nonce:"
	}
	return &RedisNonceStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Use atomically consumes a nonce. It returns false when the nonce was
// already consumed. The TTL only needs to cover the state token lifetime;
// after that the token itself is expired.
func (s *RedisNonceStore) Use(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	key := s.keyPrefix + nonce

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return ok, nil
}

// Ping checks the Redis connection
func (s *RedisNonceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisNonceStore) Close() error {
	return s.client.Close()
}

// Ensure RedisNonceStore implements the domain port
var _ connector.NonceGuard = (*RedisNonceStore)(nil)
