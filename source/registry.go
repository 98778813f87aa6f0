package source

import (
	"slices"
	"sync"
)

// KeyRegistry records the invalidation tags of every cached hydration key. Synchronizers
// that share a query cache must share a registry, otherwise an update handled by one of
// them leaves the keys tracked by the others in the cache.
type KeyRegistry struct {
	// cache key -> *tagList
	keys sync.Map
}

type tagList struct {
	tags []string
}

// NewKeyRegistry returns an empty registry.
func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{}
}

// Track merges tags into the entry for key. Entries are replaced, never mutated, so
// concurrent Match calls see a consistent list.
func (r *KeyRegistry) Track(key string, tags []string) {
	for {
		current, loaded := r.keys.LoadOrStore(key, &tagList{tags: dedupeStrings(tags)})
		if !loaded {
			return
		}
		existing, _ := current.(*tagList)
		next := &tagList{tags: dedupeStrings(append(append([]string(nil), existing.tags...), tags...))}
		if len(next.tags) == len(existing.tags) {
			return
		}
		if r.keys.CompareAndSwap(key, current, next) {
			return
		}
	}
}

// Tags returns the tags tracked for key.
func (r *KeyRegistry) Tags(key string) []string {
	v, ok := r.keys.Load(key)
	if !ok {
		return nil
	}
	list, _ := v.(*tagList)
	return append([]string(nil), list.tags...)
}

// Take removes and returns every key registered under any of tags.
func (r *KeyRegistry) Take(tags ...string) []string {
	var keys []string
	r.keys.Range(func(k, v any) bool {
		key, _ := k.(string)
		registered, _ := v.(*tagList)
		if registered == nil {
			return true
		}
		for _, tag := range tags {
			if slices.Contains(registered.tags, tag) {
				keys = append(keys, key)
				break
			}
		}
		return true
	})
	for _, key := range keys {
		r.keys.Delete(key)
	}
	return keys
}

// Forget drops key.
func (r *KeyRegistry) Forget(key string) {
	r.keys.Delete(key)
}

// Reset drops every key.
func (r *KeyRegistry) Reset() {
	r.keys.Range(func(k, _ any) bool {
		r.keys.Delete(k)
		return true
	})
}
