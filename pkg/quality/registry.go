package quality

import (
	"github.com/platinummonkey/geoqc/pkg/dataset"
)

// Registry manages the available rules. It is populated at startup and is
// read-only afterwards, so concurrent evaluations share it without locking.
type Registry struct {
	rules     []Rule
	workspace []WorkspaceRule
	ids       map[string]Descriptor
}

// NewRegistry creates an empty rule registry
func NewRegistry() *Registry {
	return &Registry{
		ids: make(map[string]Descriptor),
	}
}

// Register adds a dataset rule. IDs are unique across both rule kinds; on
// error the registry is left unchanged.
func (r *Registry) Register(rule Rule) error {
	if rule == nil || rule.ID() == "" {
		return ErrInvalidRule
	}
	if _, ok := r.ids[rule.ID()]; ok {
		return &DuplicateRuleError{ID: rule.ID()}
	}
	r.ids[rule.ID()] = rule
	r.rules = append(r.rules, rule)
	return nil
}

// RegisterWorkspace adds a cross-dataset rule
func (r *Registry) RegisterWorkspace(rule WorkspaceRule) error {
	if rule == nil || rule.ID() == "" {
		return ErrInvalidRule
	}
	if _, ok := r.ids[rule.ID()]; ok {
		return &DuplicateRuleError{ID: rule.ID()}
	}
	r.ids[rule.ID()] = rule
	r.workspace = append(r.workspace, rule)
	return nil
}

// ApplicableRules returns the rules that apply to h in registration order
func (r *Registry) ApplicableRules(h *dataset.Handle) []Rule {
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.AppliesTo(h) {
			rules = append(rules, rule)
		}
	}
	return rules
}

// Rule retrieves a rule of either kind by ID
func (r *Registry) Rule(id string) (Descriptor, bool) {
	rule, ok := r.ids[id]
	return rule, ok
}

// Rules returns all dataset rules in registration order
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// WorkspaceRules returns all workspace rules in registration order
func (r *Registry) WorkspaceRules() []WorkspaceRule {
	return append([]WorkspaceRule(nil), r.workspace...)
}

// Len returns the number of registered rules of both kinds
func (r *Registry) Len() int {
	return len(r.ids)
}
