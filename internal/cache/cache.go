// Package cache stores short-lived byte payloads keyed by string. The stats
// endpoint uses it so dashboard refreshes do not hit Spotify every time.
//
// BEST EFFORT:
// Implementations are best effort: a failed Set or an unreachable backend
// behaves like a miss.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the storage contract.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Driver names accepted by New.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Options configures New.
type Options struct {
	Driver     string
	DefaultTTL time.Duration
	RedisAddr  string
	RedisDB    int
	KeyPrefix  string
}

// New builds the cache selected by opts.Driver. An empty driver is "memory".
func New(opts Options) (Cache, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(opts.DefaultTTL), nil
	case DriverRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("cache: redis driver requires an address")
		}
		return NewRedis(opts.RedisAddr, opts.RedisDB, opts.KeyPrefix), nil
	case DriverNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", opts.Driver)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Nop) Set(context.Context, string, []byte, time.Duration) {}
func (Nop) Delete(context.Context, string)                     {}
