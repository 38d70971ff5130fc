package quality

import (
	"errors"
	"fmt"
)

// ErrInvalidRule is returned when registering a nil rule or one without an ID
var ErrInvalidRule = errors.New("quality: rule must be non-nil and have an ID")

// DuplicateRuleError is returned when a rule ID is registered twice
type DuplicateRuleError struct {
	ID string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("rule %q is already registered", e.ID)
}

// RuleExecutionError describes a rule that failed or panicked. The engine
// records it as a finding; it never escapes Evaluate.
type RuleExecutionError struct {
	RuleID  string
	Dataset string
	Err     error
}

func (e *RuleExecutionError) Error() string {
	if e.Dataset != "" {
		return fmt.Sprintf("rule %s failed on %s: %v", e.RuleID, e.Dataset, e.Err)
	}
	return fmt.Sprintf("rule %s failed: %v", e.RuleID, e.Err)
}

func (e *RuleExecutionError) Unwrap() error { return e.Err }

// PanicError carries a value recovered from a panicking rule
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
