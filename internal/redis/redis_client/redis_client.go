// Package redis_client dials the Redis instance carrying the room relay
// channels.
package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewRedisClient(host string, port int) (*redis.Client, error) {
	// The relay holds one dedicated subscriber connection per live room;
	// publishes share the pool. Rooms number in the dozens, not thousands,
	// so the pool stays small.
	poolSize := runtime.NumCPU() * 4
	if poolSize > 128 {
		poolSize = 128
	}

	rc := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		PoolSize:     poolSize,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		zap.L().Error("redis_connect",
			zap.String("addr", rc.Options().Addr),
			zap.Error(err),
		)
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return rc, nil
}
