package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"compliancesync/internal/domain"
)

// Redis shares cached results between processes.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, prefix: "compliancesync:"}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (domain.JurisdictionResult, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.JurisdictionResult{}, false, nil
	}
	if err != nil {
		return domain.JurisdictionResult{}, false, err
	}
	var res domain.JurisdictionResult
	if err := json.Unmarshal(data, &res); err != nil {
		// unreadable entries are treated as misses
		return domain.JurisdictionResult{}, false, nil
	}
	return res, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, result domain.JurisdictionResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, data, ttl).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
