package cache

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Redis shares cached payloads between server instances.
type Redis struct {
	c      *rdb.Client
	prefix string
}

func NewRedis(addr string, db int, prefix string) *Redis {
	return &Redis{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db}), prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, k string) ([]byte, bool) {
	b, err := r.c.Get(ctx, r.prefix+k).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, k string, v []byte, ttl time.Duration) {
	_ = r.c.Set(ctx, r.prefix+k, v, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, k string) { _ = r.c.Del(ctx, r.prefix+k).Err() }

// Ping checks connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.c.Close() }
