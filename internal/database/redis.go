// internal/database/redis.go
package database

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"call-service/internal/config"
)

// NewRedis initializes the Redis connection. Returns nil when Redis is
// not configured or unreachable; callers treat a nil client as "mirror
// publishing disabled" rather than a startup failure.
func NewRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.URL == "" {
		log.Println("REDIS_URL not set, event mirroring disabled")
		return nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Printf("Failed to parse REDIS_URL: %v", err)
		return nil
	}

	client := redis.NewClient(opt)

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		return nil
	}

	log.Println("Redis connected successfully")
	return client
}
