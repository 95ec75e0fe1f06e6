package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/legalscan/internal/model"
)

// Cache is a byte-oriented key/value cache with per-entry TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// New builds the cache described by cfg, or nil when caching is disabled
// An empty Dir keeps the cache in memory only.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, cleanupInterval(cfg.MemoryTTL))
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

// ReportKey generates the cache key of a stored report
func ReportKey(id string) string {
	return Key("report", id)
}

// Key generates a namespaced cache key; the id is hashed so any string is file-safe
func Key(namespace, id string) string {
	hash := sha256.Sum256([]byte(id))
	return "legalscan:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 10 * time.Minute
	}
	return ttl
}
