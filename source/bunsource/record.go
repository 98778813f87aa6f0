package bunsource

import (
	"time"

	"github.com/goliatone/go-optimistic-cache/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntityRecord is one model of one entity as mirrored by the indexer. An entity is the
// set of rows sharing EntityID.
type EntityRecord struct {
	bun.BaseModel `bun:"table:entity_models,alias:em"`

	ID        uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	EntityID  string         `bun:"entity_id,notnull" json:"entityId"`
	Namespace string         `bun:"namespace,notnull" json:"namespace"`
	Model     string         `bun:"model,notnull" json:"model"`
	Fields    map[string]any `bun:"fields,type:json" json:"fields"`
	UpdatedAt time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// GroupRecords folds rows into entities, keeping the order in which entity ids first
// appear.
func GroupRecords(records []*EntityRecord) []store.Entity {
	var order []string
	byID := map[string]*store.Entity{}

	for _, r := range records {
		if r == nil || r.EntityID == "" || r.Namespace == "" || r.Model == "" {
			continue
		}
		e, ok := byID[r.EntityID]
		if !ok {
			e = &store.Entity{ID: r.EntityID, Models: store.Models{}}
			byID[r.EntityID] = e
			order = append(order, r.EntityID)
		}
		ns, ok := e.Models[r.Namespace]
		if !ok {
			ns = store.Namespace{}
			e.Models[r.Namespace] = ns
		}
		fields := store.Fields{}
		for k, v := range r.Fields {
			fields[k] = v
		}
		ns[r.Model] = fields
	}

	out := make([]store.Entity, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// RecordsFor flattens an entity into one row per model.
func RecordsFor(e store.Entity) []*EntityRecord {
	var out []*EntityRecord
	for ns, models := range e.Models {
		for model, fields := range models {
			out = append(out, &EntityRecord{
				ID:        uuid.New(),
				EntityID:  e.ID,
				Namespace: ns,
				Model:     model,
				Fields:    map[string]any(fields),
			})
		}
	}
	return out
}
