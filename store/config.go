package store

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultWaitTimeout is the wait budget used by WaitForEntityChange when the caller
// passes a non-positive timeout.
const DefaultWaitTimeout = 6 * time.Second

// RevertPolicy selects how RevertOptimisticUpdate treats later pending transactions
// that touched the same paths.
type RevertPolicy string

const (
	// RevertLastApplicableWins applies the inverse script to the current state without
	// conflict detection. Overlapping reverts can leave a state no single transaction
	// history produces.
	RevertLastApplicableWins RevertPolicy = "last-applicable-wins"
	// RevertRejectConflicts refuses a revert whose paths overlap the forward paths of a
	// transaction applied after it that is still pending.
	RevertRejectConflicts RevertPolicy = "reject-conflicts"
)

// Config holds store tuning.
type Config struct {
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	RevertPolicy RevertPolicy  `mapstructure:"revert_policy" yaml:"revert_policy"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:  DefaultWaitTimeout,
		RevertPolicy: RevertLastApplicableWins,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.WaitTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RevertPolicy, validation.Required,
			validation.In(RevertLastApplicableWins, RevertRejectConflicts)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid store config").
			WithTextCode(CodeInvalidConfig)
	}
	return nil
}
