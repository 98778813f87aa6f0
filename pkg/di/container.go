package di

import (
	"log/slog"

	"github.com/goliatone/go-optimistic-cache/cache"
	"github.com/goliatone/go-optimistic-cache/internal/cacheinfra"
	"github.com/goliatone/go-optimistic-cache/source"
	"github.com/goliatone/go-optimistic-cache/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Config groups the settings of every component the container builds.
type Config struct {
	Store     store.Config `mapstructure:"store" yaml:"store"`
	Cache     cache.Config `mapstructure:"cache" yaml:"cache"`
	KeyPrefix string       `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// DefaultConfig returns the default store and cache settings.
func DefaultConfig() Config {
	return Config{
		Store: store.DefaultConfig(),
		Cache: cache.DefaultConfig(),
	}
}

// Option configures a Container.
type Option func(*Container)

// WithLogger shares logger between the store and the synchronizers.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers the store metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Container) {
		c.registerer = reg
	}
}

// Container owns the singletons of one optimistic cache: the store, the query cache
// and the key serializer. Synchronizers for any number of sources are built on top.
type Container struct {
	store         *store.Store
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	keyRegistry   *source.KeyRegistry
	metrics       *store.Metrics
	config        Config

	logger     *slog.Logger
	registerer prometheus.Registerer
}

// NewContainer validates config and builds the components.
func NewContainer(config Config, opts ...Option) (*Container, error) {
	c := &Container{
		config: config,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	cacheService, err := cacheinfra.NewSturdycService(config.Cache)
	if err != nil {
		return nil, err
	}

	if err := config.Store.Validate(); err != nil {
		return nil, err
	}

	c.metrics = store.NewMetrics()
	if c.registerer != nil {
		if err := c.metrics.Register(c.registerer); err != nil {
			return nil, err
		}
	}
	st, err := store.New(config.Store, store.WithLogger(c.logger), store.WithMetrics(c.metrics))
	if err != nil {
		return nil, err
	}

	var keyOpts []cache.KeySerializerOption
	if config.KeyPrefix != "" {
		keyOpts = append(keyOpts, cache.WithKeyPrefix(config.KeyPrefix))
	}

	c.store = st
	c.cacheService = cacheService
	c.keySerializer = cache.NewDefaultKeySerializer(keyOpts...)
	c.keyRegistry = source.NewKeyRegistry()
	return c, nil
}

// NewContainerWithDefaults builds a container from DefaultConfig.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

// Store returns the entity store.
func (c *Container) Store() *store.Store {
	return c.store
}

// CacheService returns the query cache.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the key serializer shared by synchronizers.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Metrics returns the store metrics, registered when WithRegisterer was given.
func (c *Container) Metrics() *store.Metrics {
	return c.metrics
}

// Config returns the configuration the container was built with.
func (c *Container) Config() Config {
	return c.config
}

// Logger returns the shared logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// KeyRegistry returns the invalidation registry shared by synchronizers.
func (c *Container) KeyRegistry() *source.KeyRegistry {
	return c.keyRegistry
}

// NewSynchronizer connects src to the container's store through the shared cache.
// Synchronizers of one container share cached results per Query and their key
// registry, so a live update handled by any of them invalidates queries hydrated by the
// others. Two sources that answer the same Query differently need separate containers.
func (c *Container) NewSynchronizer(src source.Source) *source.Synchronizer {
	return source.NewSynchronizer(c.store, src, c.cacheService, c.keySerializer,
		source.WithLogger(c.logger),
		source.WithKeyRegistry(c.keyRegistry),
	)
}
