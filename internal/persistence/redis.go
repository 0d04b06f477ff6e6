package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DevDonal19/imparablesmujeres/internal/config"
)

const redisDialTimeout = 3 * time.Second

// OpenRedis connects the shared session backend and pings it. An unreachable
// server is an error.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(redisOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   "imparablesctl",
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisDialTimeout,
		WriteTimeout: redisDialTimeout,
	}
}
