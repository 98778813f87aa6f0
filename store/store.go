package store

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Update outcomes recorded in the entity_cache_entity_updates_total metric.
const (
	updateMerged  = "merged"
	updateCreated = "created"
	updateDropped = "dropped"
)

// Store is an in-memory entity cache with an optimistic transaction ledger.
//
// Every mutator runs as one step under a single writer lock and installs a new
// immutable State; readers load the current snapshot without locking.
type Store struct {
	mu       sync.Mutex
	state    atomic.Pointer[State]
	sequence uint64 // guarded by mu

	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	subscribers    *xsync.MapOf[uint64, *subscriber]
	nextSubscriber atomic.Uint64
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates an empty store using the provided configuration.
func New(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:         cfg,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
		subscribers: xsync.NewMapOf[uint64, *subscriber](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(emptyState())
	return s, nil
}

// NewWithDefaults creates an empty store using DefaultConfig.
func NewWithDefaults(opts ...Option) *Store {
	s, err := New(DefaultConfig(), opts...)
	if err != nil {
		// DefaultConfig always validates
		panic(err)
	}
	return s
}

// Config returns the configuration the store was built with.
func (s *Store) Config() Config {
	return s.cfg
}

// Snapshot returns the current state. Its maps are shared and must not be mutated.
func (s *Store) Snapshot() State {
	return *s.state.Load()
}

// GetEntity returns the current value of an entity.
func (s *Store) GetEntity(id string) (Entity, bool) {
	e, ok := s.state.Load().Entities[id]
	return e, ok
}

// GetEntities returns the entities accepted by filter, sorted by id.
func (s *Store) GetEntities(filter EntityFilter) []Entity {
	entities := s.state.Load().Entities
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetEntitiesByModel returns the entities carrying a non-nil namespace/model record.
func (s *Store) GetEntitiesByModel(namespace, model string) []Entity {
	return s.GetEntities(func(e Entity) bool {
		fields, ok := e.Model(namespace, model)
		return ok && fields != nil
	})
}

// SetEntities writes each entity wholesale, replacing any previous value.
func (s *Store) SetEntities(entities ...Entity) {
	if len(entities) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	next := copyEntities(cur.Entities, len(entities))
	written := 0
	for _, e := range entities {
		if e.ID == "" {
			s.logger.Debug("skipping entity without id")
			continue
		}
		next[e.ID] = ownEntity(e)
		written++
	}
	if written == 0 {
		return
	}

	s.install(&State{Entities: next, PendingTransactions: cur.PendingTransactions})
	s.metrics.entitiesSet(written)
	s.logger.Debug("entities set", "count", written)
}

// UpdateEntity merges a partial entity into the cached one. Each namespace/model pair
// in the update replaces the same pair in the cached entity; pairs it does not mention
// are kept. An update for an entity that is not cached is dropped and reported as false.
func (s *Store) UpdateEntity(partial Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	existing, ok := cur.Entities[partial.ID]
	if !ok || partial.ID == "" {
		s.metrics.entityUpdate(updateDropped)
		s.logger.Debug("dropping update for unknown entity", "entity_id", partial.ID)
		return false
	}
	if partial.Models == nil {
		return false
	}

	next := copyEntities(cur.Entities, 0)
	next[partial.ID] = Entity{ID: partial.ID, Models: mergeModels(existing.Models, partial.Models)}
	s.install(&State{Entities: next, PendingTransactions: cur.PendingTransactions})
	s.metrics.entityUpdate(updateMerged)
	return true
}

// MergeEntities applies UpdateEntity semantics to every entity, inserting the ones
// that are not cached yet instead of dropping them.
func (s *Store) MergeEntities(entities ...Entity) {
	if len(entities) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	next := copyEntities(cur.Entities, len(entities))
	changed := false
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		changed = true
		if existing, ok := next[e.ID]; ok {
			next[e.ID] = Entity{ID: e.ID, Models: mergeModels(existing.Models, e.Models)}
			s.metrics.entityUpdate(updateMerged)
			continue
		}
		next[e.ID] = ownEntity(e)
		s.metrics.entityUpdate(updateCreated)
	}
	if !changed {
		return
	}
	s.install(&State{Entities: next, PendingTransactions: cur.PendingTransactions})
}

// install publishes next as the current state. Callers hold s.mu.
func (s *Store) install(next *State) {
	next.Version = s.state.Load().Version + 1
	s.state.Store(next)
	s.publish(*next)
}

func copyEntities(src map[string]Entity, extra int) map[string]Entity {
	out := make(map[string]Entity, len(src)+extra)
	for id, e := range src {
		out[id] = e
	}
	return out
}

func copyPending(src map[string]PendingTransaction) map[string]PendingTransaction {
	out := make(map[string]PendingTransaction, len(src)+1)
	for id, tx := range src {
		out[id] = tx
	}
	return out
}

func ownEntity(e Entity) Entity {
	e = e.Clone()
	if e.Models == nil {
		e.Models = Models{}
	}
	return e
}

// mergeModels returns a new Models value; namespaces it does not touch are shared
// with existing.
func mergeModels(existing, incoming Models) Models {
	out := make(Models, len(existing)+len(incoming))
	for name, ns := range existing {
		out[name] = ns
	}
	for name, models := range incoming {
		merged := make(Namespace, len(out[name])+len(models))
		for model, fields := range out[name] {
			merged[model] = fields
		}
		for model, fields := range models {
			merged[model] = fields.clone()
		}
		out[name] = merged
	}
	return out
}
