package store

import (
	"time"
)

// Fields holds the field values of a single model record.
type Fields map[string]any

// Namespace maps model names to their field values.
type Namespace map[string]Fields

// Models maps namespace names to the models attached to an entity.
type Models map[string]Namespace

// Entity is the unit of cache storage. Values handed out by the store are shared
// snapshots and must not be mutated; use Clone to obtain a private copy.
type Entity struct {
	ID     string `json:"entityId" yaml:"entityId"`
	Models Models `json:"models" yaml:"models"`
}

// Model returns the fields of namespace/model and whether they are present.
func (e Entity) Model(namespace, model string) (Fields, bool) {
	ns, ok := e.Models[namespace]
	if !ok {
		return nil, false
	}
	fields, ok := ns[model]
	return fields, ok
}

// Field returns a single field value.
func (e Entity) Field(namespace, model, field string) (any, bool) {
	fields, ok := e.Model(namespace, model)
	if !ok {
		return nil, false
	}
	v, ok := fields[field]
	return v, ok
}

// Clone returns a copy of the entity whose maps are not shared with the original.
// Field values themselves are copied by reference.
func (e Entity) Clone() Entity {
	return Entity{ID: e.ID, Models: e.Models.clone()}
}

func (m Models) clone() Models {
	if m == nil {
		return nil
	}
	out := make(Models, len(m))
	for name, ns := range m {
		out[name] = ns.clone()
	}
	return out
}

func (n Namespace) clone() Namespace {
	if n == nil {
		return nil
	}
	out := make(Namespace, len(n))
	for name, fields := range n {
		out[name] = fields.clone()
	}
	return out
}

func (f Fields) clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// PendingTransaction is the ledger record of an optimistic edit that has been applied
// but not yet confirmed or reverted.
type PendingTransaction struct {
	TransactionID  string
	Patches        []Patch
	InversePatches []Patch
	// Sequence orders pending transactions by apply time.
	Sequence  uint64
	AppliedAt time.Time
}

// State is an immutable snapshot of the cache.
type State struct {
	Entities            map[string]Entity
	PendingTransactions map[string]PendingTransaction
	// Version increases by one with every installed snapshot.
	Version uint64
}

func emptyState() *State {
	return &State{
		Entities:            map[string]Entity{},
		PendingTransactions: map[string]PendingTransaction{},
	}
}

// EntityFilter selects entities in GetEntities. A nil filter selects everything.
type EntityFilter func(Entity) bool

// EntityPredicate is evaluated by WaitForEntityChange against the current value of the
// watched entity; ok is false when the entity is absent.
type EntityPredicate func(e Entity, ok bool) bool
