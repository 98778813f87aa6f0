package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Store. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	EntitiesSet           prometheus.Counter
	EntityUpdates         *prometheus.CounterVec
	TransactionsApplied   prometheus.Counter
	TransactionsReverted  prometheus.Counter
	TransactionsConfirmed prometheus.Counter
	RevertConflicts       prometheus.Counter
	WaitTimeouts          prometheus.Counter
	PendingTransactions   prometheus.Gauge
	Subscribers           prometheus.Gauge
}

// NewMetrics builds the collectors. They are exported once Register is called.
func NewMetrics() *Metrics {
	m := &Metrics{
		EntitiesSet: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_cache_entities_set_total",
			Help: "Entities written wholesale by SetEntities",
		}),
		EntityUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entity_cache_entity_updates_total",
			Help: "Remote entity updates by outcome (merged, created, dropped)",
		}, []string{"result"}),
		TransactionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_cache_transactions_applied_total",
			Help: "Optimistic transactions applied",
		}),
		TransactionsReverted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_cache_transactions_reverted_total",
			Help: "Optimistic transactions reverted",
		}),
		TransactionsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_cache_transactions_confirmed_total",
			Help: "Optimistic transactions confirmed",
		}),
		RevertConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_cache_revert_conflicts_total",
			Help: "Reverts rejected because a later pending transaction overlaps",
		}),
		WaitTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_cache_wait_timeouts_total",
			Help: "WaitForEntityChange calls that exceeded their budget",
		}),
		PendingTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "entity_cache_pending_transactions",
			Help: "Ledger entries currently pending",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "entity_cache_subscribers",
			Help: "Registered state listeners",
		}),
	}
	return m
}

// Register adds the collectors to reg, returning the first registration error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EntitiesSet,
		m.EntityUpdates,
		m.TransactionsApplied,
		m.TransactionsReverted,
		m.TransactionsConfirmed,
		m.RevertConflicts,
		m.WaitTimeouts,
		m.PendingTransactions,
		m.Subscribers,
	}
}

func (m *Metrics) entitiesSet(n int) {
	if m != nil {
		m.EntitiesSet.Add(float64(n))
	}
}

func (m *Metrics) entityUpdate(result string) {
	if m != nil {
		m.EntityUpdates.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) applied(pending int) {
	if m != nil {
		m.TransactionsApplied.Inc()
		m.PendingTransactions.Set(float64(pending))
	}
}

func (m *Metrics) reverted(pending int) {
	if m != nil {
		m.TransactionsReverted.Inc()
		m.PendingTransactions.Set(float64(pending))
	}
}

func (m *Metrics) confirmed(pending int) {
	if m != nil {
		m.TransactionsConfirmed.Inc()
		m.PendingTransactions.Set(float64(pending))
	}
}

func (m *Metrics) revertConflict() {
	if m != nil {
		m.RevertConflicts.Inc()
	}
}

func (m *Metrics) waitTimeout() {
	if m != nil {
		m.WaitTimeouts.Inc()
	}
}

func (m *Metrics) subscribers(n int) {
	if m != nil {
		m.Subscribers.Set(float64(n))
	}
}
