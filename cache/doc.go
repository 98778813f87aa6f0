// Package cache holds the query-result cache that sits between an entity source and
// the optimistic store.
//
// # Overview
//
// Hydration queries are expensive remote reads. The cache lets several components ask
// for the same query without hitting the source twice, while live updates drop the
// cached results they make stale.
//
//   - CacheService: read-through GetOrFetch plus key, prefix and bulk invalidation
//   - KeySerializer: builds stable keys from a method name and its arguments
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	keys := cache.NewDefaultKeySerializer()
//
//	key := keys.SerializeKey("FetchEntities", query)
//	entities, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) ([]store.Entity, error) {
//		return src.FetchEntities(ctx, query)
//	})
//
// # Keys
//
// Arguments implementing Keyer contribute their CacheKey. Scalars are written as-is,
// string slices keep their order and string maps are sorted. Other values are msgpack
// encoded with sorted map keys and replaced by an xxhash digest, as is any segment
// longer than the configured maximum. Keys start with the method name (after an
// optional prefix) so MethodPrefix can be used with DeleteByPrefix.
//
// The source package builds on this to cache hydration queries and to invalidate them
// by tag when the store receives remote updates.
package cache
