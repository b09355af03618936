package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig addresses the redis instance settings are kept in.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // defaults to Key
}

// RedisStore keeps settings as a JSON string under one redis key.
type RedisStore struct {
	client   *redis.Client
	key      string
	defaults Settings
}

// NewRedisStore connects and pings with exponential backoff.
func NewRedisStore(ctx context.Context, cfg RedisConfig, defaults Settings) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := 5
	backoff := 200 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			break
		}
		if attempt < attempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	key := cfg.Key
	if key == "" {
		key = Key
	}
	return &RedisStore{client: client, key: key, defaults: defaults}, nil
}

func (r *RedisStore) Load(ctx context.Context) (Settings, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return r.defaults, nil
		}
		return r.defaults, &ReadError{Err: err}
	}
	return Decode(data, r.defaults)
}

func (r *RedisStore) Save(ctx context.Context, s Settings) error {
	data, err := Encode(s)
	if err != nil {
		return &WriteError{Err: err}
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
