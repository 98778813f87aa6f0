package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-optimistic-cache/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Step operations understood by replay.
const (
	OpApply   = "apply"
	OpRevert  = "revert"
	OpConfirm = "confirm"
	OpUpdate  = "update"
	OpMerge   = "merge"
	OpSet     = "set"
)

const codeInvalidScenario = "INVALID_SCENARIO"

// Scenario seeds a store and then runs a list of steps against it.
type Scenario struct {
	Seed  []store.Entity `yaml:"seed"`
	Steps []Step         `yaml:"steps"`
}

// Step is one store operation. apply edits Entity's Namespace/Model record with Set and
// Unset; update, merge and set write Models for Entity.
type Step struct {
	Op        string         `yaml:"op"`
	Tx        string         `yaml:"tx,omitempty"`
	Entity    string         `yaml:"entity,omitempty"`
	Namespace string         `yaml:"namespace,omitempty"`
	Model     string         `yaml:"model,omitempty"`
	Set       map[string]any `yaml:"set,omitempty"`
	Unset     []string       `yaml:"unset,omitempty"`
	Models    store.Models   `yaml:"models,omitempty"`
}

// Validate checks that the step carries what its operation needs.
func (s Step) Validate() error {
	txOp := s.Op == OpApply || s.Op == OpRevert || s.Op == OpConfirm
	writeOp := s.Op == OpUpdate || s.Op == OpMerge || s.Op == OpSet
	return validation.ValidateStruct(&s,
		validation.Field(&s.Op, validation.Required,
			validation.In(OpApply, OpRevert, OpConfirm, OpUpdate, OpMerge, OpSet)),
		validation.Field(&s.Tx, validation.When(txOp, validation.Required)),
		validation.Field(&s.Entity, validation.When(s.Op == OpApply || writeOp, validation.Required)),
		validation.Field(&s.Namespace, validation.When(s.Op == OpApply, validation.Required)),
		validation.Field(&s.Model, validation.When(s.Op == OpApply, validation.Required)),
		validation.Field(&s.Models, validation.When(writeOp, validation.Required)),
	)
}

// Validate checks every step and rejects seed entities without an id.
func (sc Scenario) Validate() error {
	for i, e := range sc.Seed {
		if e.ID == "" {
			return invalidScenario(fmt.Errorf("seed %d: entityId is required", i))
		}
	}
	for i, step := range sc.Steps {
		if err := step.Validate(); err != nil {
			return invalidScenario(fmt.Errorf("step %d (%s): %w", i, step.Op, err))
		}
	}
	return nil
}

func invalidScenario(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid scenario").
		WithTextCode(codeInvalidScenario)
}

// StepResult records the store after one step.
type StepResult struct {
	Step    int      `yaml:"step"`
	Op      string   `yaml:"op"`
	Tx      string   `yaml:"tx,omitempty"`
	Version uint64   `yaml:"version"`
	Pending []string `yaml:"pending"`
	// Merged is reported for update steps only.
	Merged *bool `yaml:"merged,omitempty"`
	// Error holds the text code of a rejected step, e.g. REVERT_CONFLICT.
	Error string `yaml:"error,omitempty"`
}

// Report is the replay output.
type Report struct {
	Policy   store.RevertPolicy `yaml:"policy"`
	Steps    []StepResult       `yaml:"steps"`
	Entities []store.Entity     `yaml:"entities"`
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, invalidScenario(err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Replay seeds st and runs the scenario. Store errors are recorded per step; the
// replay only stops when ctx is done.
func Replay(ctx context.Context, st *store.Store, sc Scenario) (Report, error) {
	st.SetEntities(sc.Seed...)

	report := Report{Policy: st.Config().RevertPolicy, Steps: make([]StepResult, 0, len(sc.Steps))}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result := StepResult{Step: i, Op: step.Op, Tx: step.Tx}
		if err := runStep(st, step, &result); err != nil {
			result.Error = store.TextCode(err)
			if result.Error == "" {
				result.Error = err.Error()
			}
		}
		result.Version = st.Snapshot().Version
		result.Pending = st.PendingTransactionIDs()
		report.Steps = append(report.Steps, result)
	}

	report.Entities = st.GetEntities(nil)
	sort.Slice(report.Entities, func(i, j int) bool {
		return report.Entities[i].ID < report.Entities[j].ID
	})
	return report, nil
}

func runStep(st *store.Store, step Step, result *StepResult) error {
	switch step.Op {
	case OpApply:
		return st.ApplyOptimisticUpdate(step.Tx, func(d *store.Draft) {
			for _, field := range sortedKeys(step.Set) {
				d.SetField(step.Entity, step.Namespace, step.Model, field, step.Set[field])
			}
			for _, field := range step.Unset {
				d.DeleteField(step.Entity, step.Namespace, step.Model, field)
			}
		})
	case OpRevert:
		return st.RevertOptimisticUpdate(step.Tx)
	case OpConfirm:
		st.ConfirmTransaction(step.Tx)
	case OpUpdate:
		merged := st.UpdateEntity(store.Entity{ID: step.Entity, Models: step.Models})
		result.Merged = &merged
	case OpMerge:
		st.MergeEntities(store.Entity{ID: step.Entity, Models: step.Models})
	case OpSet:
		st.SetEntities(store.Entity{ID: step.Entity, Models: step.Models})
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newReplayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Run an optimistic transaction scenario and print the resulting states",
		Long: "Seeds a fresh store, runs apply/revert/confirm/update/merge/set steps from a YAML scenario " +
			"and prints the version and pending transactions after each step plus the final entities.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sc, err := ParseScenario(f)
			if err != nil {
				return err
			}

			container, err := a.newContainer()
			if err != nil {
				return err
			}
			a.logger.Debug("replaying scenario",
				"path", args[0],
				"steps", len(sc.Steps),
				"revert_policy", container.Store().Config().RevertPolicy,
			)

			report, err := Replay(cmd.Context(), container.Store(), sc)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().String("revert-policy", "", "override store.revert_policy: last-applicable-wins|reject-conflicts")
	_ = a.v.BindPFlag("store.revert_policy", cmd.Flags().Lookup("revert-policy"))
	return cmd
}
