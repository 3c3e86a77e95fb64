package api_test

import (
	"context"

	"github.com/go-redis/redis_rate/v9"
)

type denyAllLimiter struct {
	keys []string
}

func (l *denyAllLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.keys = append(l.keys, key)
	return &redis_rate.Result{Limit: limit}, nil
}
