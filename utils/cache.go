package utils

import (
	"context"
	"fmt"
	"time"

	"rerolab/config"

	"github.com/go-redis/redis/v8"
)

// SessionCacheClient holds stored lab sessions across restarts.
var SessionCacheClient *redis.Client

// InitSessionCache connects the session client using AppConfig. It returns an
// error instead of exiting so the caller can fall back to memory.
func InitSessionCache() error {
	client, err := NewRedisClient(config.AppConfig.RedisAddr, config.AppConfig.RedisPassword, config.AppConfig.RedisSessionDB)
	if err != nil {
		return err
	}
	SessionCacheClient = client
	return nil
}

// GetSessionCacheClient returns the session client, or nil when Redis is not
// configured or unreachable.
func GetSessionCacheClient() *redis.Client {
	if SessionCacheClient == nil && config.AppConfig.RedisAddr != "" {
		if err := InitSessionCache(); err != nil {
			GetLogger().Sugar().Warnf("session cache unavailable: %v", err)
		}
	}
	return SessionCacheClient
}

// NewRedisClient creates a client and pings it.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (%s db %d): %w", addr, db, err)
	}
	return client, nil
}
