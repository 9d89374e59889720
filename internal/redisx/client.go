package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/redis/go-redis/v9"
)

// New connects to addr and verifies the connection.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// wrap maps redis.Nil to NotFound and everything else to Internal.
func wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return apperr.New(apperr.NotFound, what+" not found")
	}
	return apperr.Wrap(err, apperr.Internal, "redis "+what)
}
