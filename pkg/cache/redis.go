package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis at the given address. Redis is used
// only for webhook-event dedup, so a missing or unreachable server is
// not fatal: the function returns nil and callers skip dedup.
func NewRedisClient(addr string) *redis.Client {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[Redis] unreachable at %s, webhook dedup disabled: %v", addr, err)
		return nil
	}
	return client
}
