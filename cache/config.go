package cache

import (
	"github.com/goliatone/go-optimistic-cache/internal/cacheinfra"
)

// Config sizes the query-result cache. See cacheinfra.Config for field semantics.
type Config = cacheinfra.Config

// EarlyRefreshConfig configures background refresh of hot query results.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// ConfigError is returned by Config.Validate.
type ConfigError = cacheinfra.ConfigError

var _ CacheService = (*cacheinfra.SturdycService)(nil)

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return cacheinfra.DefaultConfig()
}

// NewCacheService constructs the sturdyc backed cache service.
func NewCacheService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg)
}
