package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"sports-analytics/internal/session"
)

// OpenTokenStore opens the token store named by TokenStore. The returned
// close func releases it and is never nil.
func (c Config) OpenTokenStore(ctx context.Context) (session.TokenStore, func(), error) {
	switch c.TokenStore {
	case StoreMemory:
		return session.NewMemoryStore(session.Tokens{}), func() {}, nil

	case StoreSQLite:
		store, err := session.NewSQLiteStore(c.DBPath, c.StorePoll)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite token store: %w", err)
		}
		return store, func() { store.Close() }, nil

	case StoreRedis:
		client, err := c.redisClient()
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", c.RedisAddr, err)
		}
		store := session.NewRedisStore(client, c.RedisPrefix)
		return store, func() {
			store.Close()
			client.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown token store %q", c.TokenStore)
}

// redisClient accepts either host:port or a redis:// URL.
func (c Config) redisClient() (*redis.Client, error) {
	if strings.Contains(c.RedisAddr, "://") {
		opts, err := redis.ParseURL(c.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: c.RedisAddr}), nil
}
