package store

import (
	"sort"

	"github.com/google/uuid"
)

// NewTransactionID returns a random transaction id.
func NewTransactionID() string {
	return uuid.NewString()
}

// ApplyOptimisticUpdate runs edit against a draft of the current entities, installs
// the result immediately and records the forward and inverse scripts under
// transactionID. The entity change and the ledger entry become visible in the same
// snapshot.
//
// edit runs while the store's writer lock is held and must not call back into the
// store. A panic in edit propagates to the caller with the entities and the ledger
// unchanged.
func (s *Store) ApplyOptimisticUpdate(transactionID string, edit EditFunc) error {
	if transactionID == "" {
		return invalidTransactionError("transaction id is required", transactionID)
	}
	if edit == nil {
		return invalidTransactionError("edit function is required", transactionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if _, exists := cur.PendingTransactions[transactionID]; exists {
		return transactionExistsError(transactionID)
	}

	draft := newDraft(cur.Entities)
	edit(draft)
	entities, patches, inverse := draft.finish()

	s.sequence++
	pending := copyPending(cur.PendingTransactions)
	pending[transactionID] = PendingTransaction{
		TransactionID:  transactionID,
		Patches:        patches,
		InversePatches: inverse,
		Sequence:       s.sequence,
		AppliedAt:      s.now(),
	}

	s.install(&State{Entities: entities, PendingTransactions: pending})
	s.metrics.applied(len(pending))
	s.logger.Debug("optimistic update applied",
		"transaction_id", transactionID,
		"patches", len(patches),
	)
	return nil
}

// RevertOptimisticUpdate undoes a pending transaction by applying its inverse script to
// the current state and removes its ledger entry. Unknown ids are a no-op.
//
// With RevertLastApplicableWins the inverse script runs even when later transactions
// changed the same paths. With RevertRejectConflicts such a revert returns a
// REVERT_CONFLICT error and leaves the state untouched.
func (s *Store) RevertOptimisticUpdate(transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	tx, ok := cur.PendingTransactions[transactionID]
	if !ok {
		return nil
	}

	if s.cfg.RevertPolicy == RevertRejectConflicts {
		if blocking := overlappingLaterTransactions(cur, tx); len(blocking) > 0 {
			s.metrics.revertConflict()
			s.logger.Debug("revert rejected",
				"transaction_id", transactionID,
				"blocked_by", blocking,
			)
			return revertConflictError(transactionID, blocking)
		}
	}

	pending := copyPending(cur.PendingTransactions)
	delete(pending, transactionID)
	entities := applyPatches(cur.Entities, tx.InversePatches)

	s.install(&State{Entities: entities, PendingTransactions: pending})
	s.metrics.reverted(len(pending))
	s.logger.Debug("optimistic update reverted",
		"transaction_id", transactionID,
		"patches", len(tx.InversePatches),
	)
	return nil
}

// ConfirmTransaction drops the ledger entry of a transaction and keeps its effect.
// Unknown ids are a no-op.
func (s *Store) ConfirmTransaction(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if _, ok := cur.PendingTransactions[transactionID]; !ok {
		return
	}

	pending := copyPending(cur.PendingTransactions)
	delete(pending, transactionID)

	s.install(&State{Entities: cur.Entities, PendingTransactions: pending})
	s.metrics.confirmed(len(pending))
	s.logger.Debug("transaction confirmed", "transaction_id", transactionID)
}

// PendingTransaction returns the ledger entry for transactionID.
func (s *Store) PendingTransaction(transactionID string) (PendingTransaction, bool) {
	tx, ok := s.state.Load().PendingTransactions[transactionID]
	return tx, ok
}

// PendingTransactionIDs lists pending transactions in apply order.
func (s *Store) PendingTransactionIDs() []string {
	pending := s.state.Load().PendingTransactions
	txs := make([]PendingTransaction, 0, len(pending))
	for _, tx := range pending {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Sequence < txs[j].Sequence })

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.TransactionID
	}
	return ids
}

func overlappingLaterTransactions(state *State, tx PendingTransaction) []string {
	var blocking []string
	for id, other := range state.PendingTransactions {
		if other.Sequence <= tx.Sequence {
			continue
		}
		if patchesOverlap(tx.Patches, other.Patches) {
			blocking = append(blocking, id)
		}
	}
	sort.Strings(blocking)
	return blocking
}
