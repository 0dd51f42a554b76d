package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryRepository backs the cache interface with an in-process TTL store for
// deployments and tests that run without redis.
type MemoryRepository struct {
	store *gocache.Cache
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: gocache.New(10*time.Minute, 15*time.Minute)}
}

func (repo *MemoryRepository) preRequest() {
	if repo.store == nil {
		repo.store = gocache.New(10*time.Minute, 15*time.Minute)
	}
}

func (repo *MemoryRepository) CreateEntry(key string, payload interface{}, ttl time.Duration) bool {
	repo.preRequest()
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	repo.store.Set(key, payload, ttl)
	return true
}

func (repo *MemoryRepository) FindOneByteArray(key string) *[]byte {
	repo.preRequest()
	value, found := repo.store.Get(key)
	if !found {
		return nil
	}
	if bytes, ok := value.([]byte); ok {
		return &bytes
	}
	return nil
}

func (repo *MemoryRepository) DeleteOne(key string) bool {
	repo.preRequest()
	repo.store.Delete(key)
	return true
}
