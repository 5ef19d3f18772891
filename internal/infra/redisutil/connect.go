package redisutil

import (
	"context"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/config"
	"github.com/redis/go-redis/v9"
)

// Connect opens a client and verifies the server answers.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
