package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a ledger test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SetupSQL runs before the first step, e.g. to create legacy tables.
	SetupSQL string `yaml:"setup_sql,omitempty"`

	// Steps run in order against one database.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one ledger or migration operation.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Owner of the account. Defaults to DefaultOwner.
	Owner string `yaml:"owner,omitempty"`

	// Amount for deposit and withdraw.
	Amount uint64 `yaml:"amount,omitempty"`

	// Limit for history. Zero means the ledger default.
	Limit int `yaml:"limit,omitempty"`

	// Units names migration units for migrate (subset) and reset.
	Units []string `yaml:"units,omitempty"`

	// Expect optionally checks the step's trace event.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks fields of a step's trace event. Unset fields are not checked.
type Expect struct {
	Outcome string  `yaml:"outcome,omitempty"`
	Reason  string  `yaml:"reason,omitempty"`
	Balance *uint64 `yaml:"balance,omitempty"`
	Count   *int    `yaml:"count,omitempty"`
	Error   string  `yaml:"error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Owner is used by trace_contains, final_balance and history.
	Owner string `yaml:"owner,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Balance is the expected stored balance (final_balance).
	Balance uint64 `yaml:"balance,omitempty"`

	// Kinds and Amounts are the expected history, newest first (history).
	Kinds   []string `yaml:"kinds,omitempty"`
	Amounts []uint64 `yaml:"amounts,omitempty"`

	// Unit and Status are used by migration_status.
	Unit   string `yaml:"unit,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// DefaultOwner is used by steps and assertions that name no owner.
const DefaultOwner = "alice"

// Step action constants.
const (
	ActionStatus   = "status"
	ActionDeposit  = "deposit"
	ActionWithdraw = "withdraw"
	ActionHistory  = "history"
	ActionMigrate  = "migrate"
	ActionReset    = "reset"
)

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertFinalBalance    = "final_balance"
	AssertHistory         = "history"
	AssertMigrationStatus = "migration_status"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Action {
		case ActionStatus, ActionDeposit, ActionWithdraw, ActionHistory, ActionMigrate:
		case ActionReset:
			if len(step.Units) == 0 {
				return fmt.Errorf("steps[%d]: units are required for reset", i)
			}
		case "":
			return fmt.Errorf("steps[%d]: action is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalBalance:
	case AssertHistory:
		if len(a.Kinds) != len(a.Amounts) {
			return fmt.Errorf("assertions[%d]: kinds and amounts must have the same length", index)
		}
	case AssertMigrationStatus:
		if a.Unit == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: unit and status are required for migration_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
