package store

import (
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried by the categorised errors this package returns.
const (
	CodeInvalidTransaction = "INVALID_TRANSACTION"
	CodeTransactionExists  = "TRANSACTION_EXISTS"
	CodeRevertConflict     = "REVERT_CONFLICT"
	CodeInvalidConfig      = "INVALID_CONFIG"
)

// ErrWaitTimeout is matched by every *TimeoutError.
var ErrWaitTimeout = errors.New("store: wait for entity change timed out")

// TimeoutError is returned by WaitForEntityChange when the predicate was not satisfied
// within the wait budget.
type TimeoutError struct {
	EntityID string
	Timeout  time.Duration
	Elapsed  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("store: wait for entity %q timed out after %s (budget %s)", e.EntityID, e.Elapsed, e.Timeout)
}

// Is lets errors.Is match ErrWaitTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrWaitTimeout
}

func invalidTransactionError(message, transactionID string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(CodeInvalidTransaction).
		WithMetadata(map[string]any{"transaction_id": transactionID})
}

func transactionExistsError(transactionID string) error {
	return goerrors.New("transaction is already pending", goerrors.CategoryConflict).
		WithTextCode(CodeTransactionExists).
		WithMetadata(map[string]any{"transaction_id": transactionID})
}

func revertConflictError(transactionID string, blocking []string) error {
	return goerrors.New("revert overlaps a later pending transaction", goerrors.CategoryConflict).
		WithTextCode(CodeRevertConflict).
		WithMetadata(map[string]any{
			"transaction_id": transactionID,
			"blocked_by":     blocking,
		})
}

// TextCode extracts the text code from errors returned by this package, or "" when the
// error carries none.
func TextCode(err error) string {
	var e *goerrors.Error
	if errors.As(err, &e) {
		return e.TextCode
	}
	return ""
}
