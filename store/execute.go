package store

import (
	"context"
	"errors"
	"time"
)

// ActionFunc submits the remote action backing an optimistic edit.
type ActionFunc func(ctx context.Context) error

// OptimisticAction describes one optimistic round trip for Execute.
type OptimisticAction struct {
	// TransactionID defaults to NewTransactionID().
	TransactionID string
	Edit          EditFunc
	Action        ActionFunc

	// When Await is set, a successful action waits for AwaitEntity to satisfy it
	// before the transaction is confirmed. Timeouts are logged, not returned.
	AwaitEntity  string
	Await        EntityPredicate
	AwaitTimeout time.Duration
}

// Execute applies the edit, runs the action and always confirms the transaction
// afterwards. When the action fails the edit is reverted first and the action error is
// returned.
func (s *Store) Execute(ctx context.Context, a OptimisticAction) error {
	tid := a.TransactionID
	if tid == "" {
		tid = NewTransactionID()
	}
	if a.Action == nil {
		return invalidTransactionError("action is required", tid)
	}

	if err := s.ApplyOptimisticUpdate(tid, a.Edit); err != nil {
		return err
	}
	defer s.ConfirmTransaction(tid)

	var matched <-chan Entity
	if a.Await != nil {
		// registered before the action runs so a fast remote update is not missed
		var stop func()
		matched, stop = s.watch(a.AwaitEntity, a.Await)
		defer stop()
	}

	if err := a.Action(ctx); err != nil {
		if revertErr := s.RevertOptimisticUpdate(tid); revertErr != nil {
			s.logger.Warn("revert after failed action",
				"transaction_id", tid,
				"error", revertErr,
			)
		}
		return err
	}

	if matched == nil {
		return nil
	}
	if _, err := s.await(ctx, a.AwaitEntity, matched, a.AwaitTimeout); err != nil {
		if !errors.Is(err, ErrWaitTimeout) {
			return err
		}
		s.logger.Warn("remote value did not arrive, keeping optimistic value",
			"transaction_id", tid,
			"entity_id", a.AwaitEntity,
			"error", err,
		)
	}
	return nil
}
