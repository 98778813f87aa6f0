package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config sizes the query-result cache that sits in front of the entity source.
//
// Entries hold whole query results ([]store.Entity) keyed by the serialized query, so
// Capacity counts queries and not entities.
type Config struct {
	// Capacity is the maximum number of cached query results. Must be greater than 0.
	Capacity int `mapstructure:"capacity" yaml:"capacity"`

	// NumShards splits the cache for concurrent access. Must be greater than 0.
	NumShards int `mapstructure:"num_shards" yaml:"num_shards"`

	// TTL bounds how long a hydrated query result may be replayed into the store.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// EvictionPercentage is the share of entries evicted once Capacity is reached (1-100).
	EvictionPercentage int `mapstructure:"eviction_percentage" yaml:"eviction_percentage"`

	// EarlyRefresh refreshes hot query results in the background before they expire.
	// Nil disables it; live updates usually invalidate entries first.
	EarlyRefresh *EarlyRefreshConfig `mapstructure:"early_refresh" yaml:"early_refresh"`

	// MissingRecordStorage remembers queries whose fetch reported sturdyc.ErrNotFound.
	MissingRecordStorage bool `mapstructure:"missing_record_storage" yaml:"missing_record_storage"`

	// EvictionInterval sets how often expired entries are swept. Zero keeps the sturdyc default.
	EvictionInterval time.Duration `mapstructure:"eviction_interval" yaml:"eviction_interval"`
}

// EarlyRefreshConfig maps to sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time" yaml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time" yaml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `mapstructure:"sync_refresh_time" yaml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
}

// DefaultConfig returns a small, short-lived cache suited to hydration queries.
func DefaultConfig() Config {
	return Config{
		Capacity:           1024,
		NumShards:          16,
		TTL:                30 * time.Second,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions returns the optional sturdyc settings. Capacity, NumShards, TTL and
// EvictionPercentage are positional arguments of sturdyc.New and are not included.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}
	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

type fieldCheck struct {
	field   string
	invalid bool
	message string
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	checks := []fieldCheck{
		{"Capacity", c.Capacity <= 0, "must be greater than 0"},
		{"NumShards", c.NumShards <= 0, "must be greater than 0"},
		{"TTL", c.TTL <= 0, "must be greater than 0"},
		{"EvictionPercentage", c.EvictionPercentage < 1 || c.EvictionPercentage > 100, "must be between 1 and 100"},
		{"EvictionInterval", c.EvictionInterval < 0, "must be non-negative"},
	}
	if er := c.EarlyRefresh; er != nil {
		checks = append(checks,
			fieldCheck{"EarlyRefresh.MinAsyncRefreshTime", er.MinAsyncRefreshTime < 0, "must be non-negative"},
			fieldCheck{"EarlyRefresh.MaxAsyncRefreshTime", er.MaxAsyncRefreshTime < er.MinAsyncRefreshTime, "must not be less than MinAsyncRefreshTime"},
			fieldCheck{"EarlyRefresh.SyncRefreshTime", er.SyncRefreshTime < 0, "must be non-negative"},
			fieldCheck{"EarlyRefresh.RetryBaseDelay", er.RetryBaseDelay < 0, "must be non-negative"},
		)
	}

	for _, check := range checks {
		if check.invalid {
			return &ConfigError{Field: check.field, Message: check.message}
		}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// ErrNilFetchFn is returned when GetOrFetch is called without a fetch function.
var ErrNilFetchFn = errors.New("cacheinfra: fetch function is nil")

// SturdycService is the sturdyc backed implementation of cache.CacheService.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycService{client: client}, nil
}

// GetOrFetch returns the cached value for key or runs fetchFn and caches its result.
// Concurrent callers for the same key share one in-flight fetch.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, ErrNilFetchFn
	}
	return s.client.GetOrFetch(ctx, key, fetchFn)
}

// Delete removes one entry.
func (s *SturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *SturdycService) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// InvalidateKeys removes the given entries. Unknown keys are ignored.
func (s *SturdycService) InvalidateKeys(_ context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// Len returns the number of cached entries.
func (s *SturdycService) Len() int {
	return s.client.Size()
}
