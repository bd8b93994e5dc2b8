package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 有 sentinel 設定時走 failover，否則單機連線
func NewRedisClient(ctx context.Context, c RedisConnection) (redis.UniversalClient, error) {
	var rdb redis.UniversalClient
	if len(c.SentinelAddrs) > 0 {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    c.MasterName,
			SentinelAddrs: c.SentinelAddrs,
			Password:      c.Password,
			DB:            c.DB,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
