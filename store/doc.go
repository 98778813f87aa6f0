// Package store provides an in-memory entity cache with optimistic, reversible edits.
//
// # Overview
//
// A Store keeps one mapping from entity id to Entity and one ledger of pending
// optimistic transactions. Each mutation installs a new immutable State snapshot:
//
//   - SetEntities: bulk hydration, wholesale overwrite per entity
//   - UpdateEntity: merge a remote update into a cached entity (dropped when unknown)
//   - MergeEntities: merge or insert
//   - ApplyOptimisticUpdate / RevertOptimisticUpdate / ConfirmTransaction: the ledger
//
// # Optimistic Updates
//
// An edit function receives a Draft. The store diffs the draft against the snapshot it
// was taken from and records a forward script and an inverse script:
//
//	err := s.ApplyOptimisticUpdate(tid, func(d *store.Draft) {
//		d.SetField(entityID, "game", "Position", "x", 10)
//	})
//	...
//	if actionErr != nil {
//		_ = s.RevertOptimisticUpdate(tid)
//	}
//	s.ConfirmTransaction(tid)
//
// Every apply must be followed by exactly one ConfirmTransaction, after an optional
// RevertOptimisticUpdate. Execute wraps that sequence around a remote action.
//
// # Revert Ordering
//
// Inverse scripts are computed against the state at apply time and replayed against
// the current state. Reverting a transaction while a later transaction touching the
// same paths is still pending is not detected under RevertLastApplicableWins; use
// RevertRejectConflicts to have such reverts rejected instead.
//
// # Subscriptions
//
// Subscribe delivers every snapshot, in install order, on a goroutine per listener.
// WaitForEntityChange turns a predicate over one entity into a blocking call with a
// timeout, which is how callers wait for the remote value behind an optimistic edit.
package store
