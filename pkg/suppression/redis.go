package suppression

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares the suppression window across worker replicas.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to Redis at the given URL (redis://...).
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Claim uses SET NX with a TTL so exactly one replica wins each key.
func (s *RedisStore) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, "suppression:"+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim suppression key: %w", err)
	}

	return claimed, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
