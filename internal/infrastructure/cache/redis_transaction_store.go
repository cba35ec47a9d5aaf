package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skininsight/backend/internal/domain/shared"
	"github.com/skininsight/backend/internal/infrastructure/config"
)

// RedisTransactionStore implements shared.TransactionStore on Redis.
// Suitable for multi-instance deployments where purchase events for the
// same transaction may land on different instances.
type RedisTransactionStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTransactionStore creates a Redis-backed transaction store
func NewRedisTransactionStore(cfg config.RedisConfig) (*RedisTransactionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTransactionStore{
		client:    client,
		keyPrefix: "purchase:txn:",
	}, nil
}

// NewRedisTransactionStoreWithClient creates a store with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisTransactionStoreWithClient(client *redis.Client, keyPrefix string) *RedisTransactionStore {
	if keyPrefix == "" {
		keyPrefix = "purchase:txn:"
	}
	return &RedisTransactionStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed records a transaction ID atomically via SETNX.
// Returns true if the ID was newly recorded.
func (s *RedisTransactionStore) MarkProcessed(ctx context.Context, transactionID string, ttl time.Duration) (bool, error) {
	key := s.keyPrefix + transactionID

	result, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record transaction: %w", err)
	}
	return result, nil
}

// IsProcessed checks whether a transaction ID has been seen
func (s *RedisTransactionStore) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+transactionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisTransactionStore) Close() error {
	return s.client.Close()
}

var _ shared.TransactionStore = (*RedisTransactionStore)(nil)
