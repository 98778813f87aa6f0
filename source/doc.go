// Package source connects the optimistic entity store to the remote system of record.
//
// A Source answers batch queries (typically against an indexer that mirrors on-chain
// state). The Synchronizer runs those queries through the sturdyc query cache, installs
// the results with store.SetEntities, and merges live partial updates with
// store.UpdateEntity.
//
// # Invalidation
//
// Every cached query is registered under tags: the namespace or namespace/model it filters
// on, the ids of the entities it returned, AllTag for unfiltered queries, and any tags
// attached with WithQueryTags. HandleUpdate derives the tags an update touches with
// UpdateTags and drops the matching cached queries, so the next Hydrate sees entities the
// remote side created since the last fetch.
//
//	sync := source.NewSynchronizer(st, src, svc, cache.NewDefaultKeySerializer())
//	if _, err := sync.Hydrate(ctx, source.Query{Namespace: "game", Model: "Counter"}); err != nil {
//		return err
//	}
//	merged, err := sync.HandleUpdate(ctx, update)
//
// Adapters live in subpackages: bunsource reads an SQL mirror through go-repository-bun,
// and redisfeed turns a Redis pub/sub channel into HandleUpdate calls.
package source
