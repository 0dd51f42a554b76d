package cache

import (
	"os"
	"time"
)

// CacheRepository is the small surface the template store and queue tasks need.
type CacheRepository interface {
	CreateEntry(key string, payload interface{}, ttl time.Duration) bool
	FindOneByteArray(key string) *[]byte
	DeleteOne(key string) bool
}

var Cache CacheRepository = &MemoryRepository{}

// InitialiseCache picks redis when an address is configured, otherwise the
// in-process store. Called once at startup.
func InitialiseCache() {
	if os.Getenv("REDIS_ADDR") != "" {
		Cache = &RedisRepository{}
	} else {
		Cache = NewMemoryRepository()
	}
}
