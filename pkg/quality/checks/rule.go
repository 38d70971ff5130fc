package checks

import (
	"context"

	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/quality"
)

// BaseRule provides common functionality for rules
type BaseRule struct {
	RuleID          string
	RuleCategory    quality.Category
	RuleSeverity    quality.Severity
	RuleDescription string

	config *quality.Config
}

func newBaseRule(cfg *quality.Config, id string, category quality.Category, severity quality.Severity, description string) BaseRule {
	if cfg == nil {
		cfg = quality.DefaultConfig()
	}
	return BaseRule{
		RuleID:          id,
		RuleCategory:    category,
		RuleSeverity:    severity,
		RuleDescription: description,
		config:          cfg,
	}
}

func (r *BaseRule) ID() string                 { return r.RuleID }
func (r *BaseRule) Category() quality.Category { return r.RuleCategory }
func (r *BaseRule) Severity() quality.Severity { return r.RuleSeverity }
func (r *BaseRule) Description() string        { return r.RuleDescription }

// enabled applies the per-dataset rule toggles of the config
func (r *BaseRule) enabled(h *dataset.Handle) bool {
	return r.config.RuleEnabledFor(r.RuleID, h.Name)
}

func (r *BaseRule) fields(h *dataset.Handle) quality.FieldRules {
	return r.config.FieldsFor(h.Name)
}

// finding builds a finding with the rule's defaults
func (r *BaseRule) finding(target quality.Target, message, remediation string) quality.Finding {
	return r.findingWith(r.RuleSeverity, target, message, remediation)
}

func (r *BaseRule) findingWith(severity quality.Severity, target quality.Target, message, remediation string) quality.Finding {
	return quality.Finding{
		Rule:        r.RuleID,
		Severity:    severity,
		Category:    r.RuleCategory,
		Target:      target,
		Message:     message,
		Remediation: remediation,
	}
}

// ctxCheckInterval is how many rows a scan reads between context checks
const ctxCheckInterval = 1024

// scanRows streams every row of h through fn, stopping at the first scan
// error or cancellation
func scanRows(ctx context.Context, h *dataset.Handle, fn func(dataset.Row)) error {
	n := 0
	for row, err := range h.Rows(ctx) {
		if err != nil {
			return err
		}
		n++
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(row)
	}
	return ctx.Err()
}

// presentFields maps configured field names onto the dataset's own names,
// dropping those the dataset does not have
func presentFields(h *dataset.Handle, names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		f, ok := h.Field(name)
		if !ok || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		out = append(out, f.Name)
	}
	return out
}
