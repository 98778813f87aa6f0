package source

import (
	"context"
	"log/slog"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-optimistic-cache/cache"
	"github.com/goliatone/go-optimistic-cache/store"
)

const methodFetchEntities = "FetchEntities"

// Text codes of the errors returned by the Synchronizer.
const (
	CodeInvalidQuery  = "INVALID_QUERY"
	CodeInvalidUpdate = "INVALID_UPDATE"
	CodeFetchFailed   = "FETCH_FAILED"
)

// Synchronizer keeps a store in step with a Source. Hydration results go through the
// query cache and are installed with SetEntities. Live updates are merged with
// UpdateEntity and drop every cached query they may have made stale.
type Synchronizer struct {
	store  *store.Store
	source Source
	cache  cache.CacheService
	keys   cache.KeySerializer
	logger *slog.Logger

	registry *KeyRegistry
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. The default discards records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKeyRegistry shares registry with other synchronizers on the same query cache. The
// default is a registry private to the synchronizer.
func WithKeyRegistry(registry *KeyRegistry) Option {
	return func(s *Synchronizer) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// NewSynchronizer wires a store to a source through the query cache.
func NewSynchronizer(st *store.Store, src Source, svc cache.CacheService, keys cache.KeySerializer, opts ...Option) *Synchronizer {
	if keys == nil {
		keys = cache.NewDefaultKeySerializer()
	}
	s := &Synchronizer{
		store:    st,
		source:   src,
		cache:    svc,
		keys:     keys,
		logger:   slog.New(slog.DiscardHandler),
		registry: NewKeyRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate runs q against the source, or replays a cached result, and installs the
// entities with SetEntities. Entities the store already holds are replaced wholesale,
// which relies on the Source returning whole entities.
func (s *Synchronizer) Hydrate(ctx context.Context, q Query) ([]store.Entity, error) {
	if err := q.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid hydration query").
			WithTextCode(CodeInvalidQuery)
	}

	key := s.keys.SerializeKey(methodFetchEntities, q)
	s.registry.Track(key, append(q.Tags(), queryTagsFromContext(ctx)...))

	entities, err := cache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) ([]store.Entity, error) {
		s.logger.Debug("fetching entities", "key", key, "namespace", q.Namespace, "model", q.Model)
		return s.source.FetchEntities(ctx, q)
	})
	if err != nil {
		s.logger.Warn("hydration failed", "key", key, "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "fetch entities").
			WithTextCode(CodeFetchFailed).
			WithMetadata(map[string]any{"cache_key": key})
	}

	entityTags := make([]string, 0, len(entities))
	for _, e := range entities {
		entityTags = append(entityTags, EntityTag(e.ID))
	}
	s.registry.Track(key, entityTags)

	s.store.SetEntities(entities...)
	s.logger.Debug("hydrated entities", "key", key, "count", len(entities))
	return entities, nil
}

// Refresh drops the cached result for q and hydrates again.
func (s *Synchronizer) Refresh(ctx context.Context, q Query) ([]store.Entity, error) {
	key := s.keys.SerializeKey(methodFetchEntities, q)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("cache delete failed", "key", key, "error", err)
	}
	s.registry.Forget(key)
	return s.Hydrate(ctx, q)
}

// HandleUpdate merges a live partial update into the store and invalidates cached
// queries it touches. It reports whether the store knew the entity. Invalid updates are
// returned to the caller and never reach the store.
func (s *Synchronizer) HandleUpdate(ctx context.Context, update store.Entity) (bool, error) {
	if update.ID == "" || len(update.Models) == 0 {
		return false, goerrors.New("live update needs an entity id and at least one namespace", goerrors.CategoryValidation).
			WithTextCode(CodeInvalidUpdate).
			WithMetadata(map[string]any{"entity_id": update.ID})
	}

	merged := s.store.UpdateEntity(update)
	if !merged {
		s.logger.Debug("live update for unknown entity dropped", "entity_id", update.ID)
	}

	if err := s.InvalidateTags(ctx, UpdateTags(update)...); err != nil {
		return merged, err
	}
	return merged, nil
}

// InvalidateTags drops every cached query registered under any of tags.
func (s *Synchronizer) InvalidateTags(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}

	keys := s.registry.Take(tags...)
	if len(keys) == 0 {
		return nil
	}
	if err := s.cache.InvalidateKeys(ctx, keys); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalidate cached queries")
	}
	s.logger.Debug("invalidated cached queries", "tags", tags, "count", len(keys))
	return nil
}

// InvalidateAll drops every cached hydration result.
func (s *Synchronizer) InvalidateAll(ctx context.Context) error {
	s.registry.Reset()
	if err := s.cache.DeleteByPrefix(ctx, cache.MethodPrefix(s.keys, methodFetchEntities)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalidate cached queries")
	}
	return nil
}
