package bunsource

import (
	"context"
	"log/slog"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-optimistic-cache/source"
	"github.com/goliatone/go-optimistic-cache/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RecordLister is the part of repository.Repository[*EntityRecord] the source reads with.
type RecordLister interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]*EntityRecord, int, error)
}

var _ RecordLister = (repository.Repository[*EntityRecord])(nil)

// Source answers hydration queries from an SQL mirror of the indexer.
type Source struct {
	records RecordLister
	logger  *slog.Logger
}

var _ source.Source = (*Source)(nil)

// New returns a Source reading through records.
func New(records RecordLister, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{records: records, logger: logger}
}

// FetchEntities returns whole entities: every model row of each entity that has a row
// matching q. The namespace and model filters pick entities, they do not trim them.
// Limit and Offset page over entities in entity id order.
func (s *Source) FetchEntities(ctx context.Context, q source.Query) ([]store.Entity, error) {
	records, err := s.list(ctx, q, Criteria(q)...)
	if err != nil {
		return nil, err
	}
	entities := pageEntities(GroupRecords(records), q.Limit, q.Offset)
	if len(entities) == 0 || (q.Namespace == "" && q.Model == "") {
		return entities, nil
	}

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	records, err = s.list(ctx, q, Criteria(source.Query{EntityIDs: ids})...)
	if err != nil {
		return nil, err
	}
	return GroupRecords(records), nil
}

func (s *Source) list(ctx context.Context, q source.Query, criteria ...repository.SelectCriteria) ([]*EntityRecord, error) {
	records, total, err := s.records.List(ctx, criteria...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "list entity records").
			WithMetadata(map[string]any{"namespace": q.Namespace, "model": q.Model})
	}
	s.logger.Debug("listed entity records", "rows", len(records), "total", total)
	return records, nil
}

func pageEntities(entities []store.Entity, limit, offset int) []store.Entity {
	if offset >= len(entities) {
		return []store.Entity{}
	}
	entities = entities[offset:]
	if limit > 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities
}

// Criteria translates the filters of q into select criteria. Rows are ordered by
// entity id, then namespace and model. Paging is applied to grouped entities, not rows.
func Criteria(q source.Query) []repository.SelectCriteria {
	var criteria []repository.SelectCriteria

	if q.Namespace != "" {
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("?TableAlias.namespace = ?", q.Namespace)
		})
	}
	if q.Model != "" {
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("?TableAlias.model = ?", q.Model)
		})
	}
	if len(q.EntityIDs) > 0 {
		ids := append([]string(nil), q.EntityIDs...)
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("?TableAlias.entity_id IN (?)", bun.In(ids))
		})
	}

	return append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.OrderExpr("?TableAlias.entity_id ASC, ?TableAlias.namespace ASC, ?TableAlias.model ASC")
	})
}
