package lock

import (
	"context"
	"fmt"
	"time"

	"cexio-trade-bot-go/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker implements Locker with SETNX and a TTL, so a crashed holder
// cannot wedge the pair forever. Use it when more than one bot process may
// target the same account.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	token  string
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(cfg *config.Redis) *RedisLocker {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisLocker{
		client: client,
		ttl:    time.Duration(cfg.LockTTL) * time.Second,
		token:  uuid.NewString(),
	}
}

func (l *RedisLocker) redisKey(key string) string {
	return "tradebot:lock:" + key
}

// TryAcquire takes the lock for key if no other holder owns it.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.redisKey(key), l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release frees the lock for key, but only if this instance still holds
// it; a lock that expired and was re-taken elsewhere is left alone.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	holder, err := l.client.Get(ctx, l.redisKey(key)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect lock %s: %w", key, err)
	}
	if holder != l.token {
		return nil
	}
	if err := l.client.Del(ctx, l.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
