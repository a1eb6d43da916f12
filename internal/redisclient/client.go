// Package redisclient constructs the shared Redis connection used by
// the dispatcher's queued delivery path and the worker's consumer loop.
package redisclient

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient builds a *redis.Client against addr with the connection
// timeouts the dispatcher's job queue expects.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}
