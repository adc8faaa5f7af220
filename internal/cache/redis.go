package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/claimjet/config"
	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps resolved flight statuses. Only public flight data is
// stored here; passenger details never reach redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}))
}

func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetStatus returns domain.ErrNotCached on a miss.
func (c *RedisCache) GetStatus(ctx context.Context, flightNumber, date string) (domain.FlightRecord, error) {
	data, err := c.client.Get(ctx, statusKey(flightNumber, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.FlightRecord{}, domain.ErrNotCached
		}
		return domain.FlightRecord{}, fmt.Errorf("redis get flight status: %w", err)
	}

	var record domain.FlightRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.FlightRecord{}, fmt.Errorf("unmarshal cached flight status: %w", err)
	}
	return record, nil
}

func (c *RedisCache) SetStatus(ctx context.Context, record domain.FlightRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal flight status for cache: %w", err)
	}
	if err := c.client.Set(ctx, statusKey(record.FlightNumber, record.Date), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set flight status: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func statusKey(flightNumber, date string) string {
	return fmt.Sprintf("cache:flight_status:%s:%s", strings.ToUpper(strings.TrimSpace(flightNumber)), strings.TrimSpace(date))
}
