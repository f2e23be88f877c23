package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adanyl0v/taskdock/internal/cache"
	"github.com/adanyl0v/taskdock/internal/config"
	"github.com/adanyl0v/taskdock/internal/services"
)

const redisPingTimeout = 2 * time.Second

var globalRedis *redis.Client

// MustConnectRedis is a no-op when no Redis endpoint is configured.
func MustConnectRedis() {
	cfg := config.Global().Redis
	if !cfg.Enabled() {
		globalLogger.Info().Msg("redis disabled")
		return
	}

	opts, err := cfg.Options()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to parse redis config")
		panic(err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		_ = rdb.Close()
		globalLogger.Error().
			Err(err).
			Str("addr", opts.Addr).
			Msg("failed to ping redis")
		panic(err)
	}
	globalRedis = rdb

	globalLogger.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Msg("connected to redis")
}

// taskCache returns nil when Redis is disabled, which turns caching off.
func taskCache() services.TaskCache {
	if globalRedis == nil {
		return nil
	}
	return cache.NewTaskCache(globalRedis, config.Global().Redis.CacheTTL)
}

func DisconnectRedis() {
	if globalRedis == nil {
		return
	}
	err := globalRedis.Close()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to close redis")
		return
	}
	globalLogger.Info().Msg("disconnected from redis")
}
