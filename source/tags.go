package source

import (
	"context"

	"github.com/goliatone/go-optimistic-cache/store"
)

// AllTag is carried by unfiltered queries; every live update invalidates it.
const AllTag = "all"

// EntityTag tags query results that contain the entity.
func EntityTag(entityID string) string {
	return "entity:" + entityID
}

// NamespaceTag tags queries that filter on a namespace only.
func NamespaceTag(namespace string) string {
	return "namespace:" + toSnake(namespace)
}

// ModelTag tags queries that filter on a namespace and model.
func ModelTag(namespace, model string) string {
	return "model:" + toSnake(namespace) + "." + toSnake(model)
}

// UpdateTags lists every tag whose cached results may be stale after e is merged.
func UpdateTags(e store.Entity) []string {
	tags := []string{AllTag, EntityTag(e.ID)}
	for ns, models := range e.Models {
		tags = append(tags, NamespaceTag(ns))
		for model := range models {
			tags = append(tags, ModelTag(ns, model))
		}
	}
	return dedupeStrings(tags)
}

type queryTagsContextKey struct{}

// WithQueryTags attaches extra invalidation tags to the next hydration made with ctx.
func WithQueryTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	combined := dedupeStrings(append(queryTagsFromContext(ctx), tags...))
	if len(combined) == 0 {
		return ctx
	}
	return context.WithValue(ctx, queryTagsContextKey{}, combined)
}

func queryTagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(queryTagsContextKey{}).([]string); ok {
		return append([]string(nil), tags...)
	}
	return nil
}

// dedupeStrings drops empty and repeated values, keeping first-seen order.
func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
