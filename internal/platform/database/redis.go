package database

import (
	"github.com/SlpAus/trailhead-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// OpenRedis creates the remote Redis client. It does not dial; an unreachable
// server surfaces as a transient error on first use.
func OpenRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
