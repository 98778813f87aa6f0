package source

import (
	"context"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-optimistic-cache/store"
)

// Query selects entities from a Source. Zero fields do not filter. Limit and Offset
// count entities.
type Query struct {
	Namespace string   `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Model     string   `json:"model,omitempty" yaml:"model,omitempty"`
	EntityIDs []string `json:"entityIds,omitempty" yaml:"entityIds,omitempty"`
	Limit     int      `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Validate checks the query bounds. A model filter needs a namespace.
func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Namespace, validation.When(q.Model != "", validation.Required)),
		validation.Field(&q.Limit, validation.Min(0)),
		validation.Field(&q.Offset, validation.Min(0)),
		validation.Field(&q.EntityIDs, validation.Each(validation.Required)),
	)
}

// CacheKey is stable regardless of the order of EntityIDs.
func (q Query) CacheKey() string {
	ids := append([]string(nil), q.EntityIDs...)
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("ns=")
	b.WriteString(q.Namespace)
	b.WriteString(";model=")
	b.WriteString(q.Model)
	b.WriteString(";ids=")
	b.WriteString(strings.Join(ids, ","))
	b.WriteString(";limit=")
	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteString(";offset=")
	b.WriteString(strconv.Itoa(q.Offset))
	return b.String()
}

// Tags lists the invalidation tags a cached result of q is registered under.
func (q Query) Tags() []string {
	var tags []string
	switch {
	case q.Namespace != "" && q.Model != "":
		tags = append(tags, ModelTag(q.Namespace, q.Model))
	case q.Namespace != "":
		tags = append(tags, NamespaceTag(q.Namespace))
	case len(q.EntityIDs) == 0:
		tags = append(tags, AllTag)
	}
	for _, id := range q.EntityIDs {
		tags = append(tags, EntityTag(id))
	}
	return dedupeStrings(tags)
}

// Source is the remote system of record the store is hydrated from, typically an
// indexer that mirrors on-chain state.
//
// FetchEntities must return whole entities. Namespace and Model select which entities
// match; each returned entity carries every model the source holds for it. Hydrate
// installs results with SetEntities, so a trimmed entity would drop the models another
// query hydrated.
type Source interface {
	FetchEntities(ctx context.Context, q Query) ([]store.Entity, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, q Query) ([]store.Entity, error)

// FetchEntities calls f.
func (f SourceFunc) FetchEntities(ctx context.Context, q Query) ([]store.Entity, error) {
	return f(ctx, q)
}
