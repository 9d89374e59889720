package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed event ids per consuming service.
type Deduper struct {
	RDB     *redis.Client
	Service string
}

// MarkOnce records id and reports whether this call was the first to do so.
func (d *Deduper) MarkOnce(ctx context.Context, id string) (bool, error) {
	ok, err := d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
	if err != nil {
		return false, wrap(err, "dedup")
	}
	return ok, nil
}

// Forget drops id so a redelivery is processed again.
func (d *Deduper) Forget(ctx context.Context, id string) error {
	return wrap(d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err(), "dedup")
}
