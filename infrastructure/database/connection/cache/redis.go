package cache

import (
	"os"
	"sync"

	"biolock.io/infrastructure/logger"
	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

var (
	instance *RedisClient
	once     sync.Once
)

// ConnectToCache is a no-op when REDIS_ADDR is unset; the cache repository then
// serves from its in-process fallback.
func ConnectToCache() {
	if os.Getenv("REDIS_ADDR") == "" {
		logger.Info("no redis address configured, using in-process cache")
		return
	}
	GetInstance()
}

func GetInstance() (*RedisClient, error) {
	once.Do(func() {
		opt := &redis.Options{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
			PoolSize: 10,
		}
		instance = &RedisClient{Client: redis.NewClient(opt)}
		logger.Info("connected to redis successfully")
	})
	return instance, nil
}
