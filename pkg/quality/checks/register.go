package checks

import (
	"fmt"

	"github.com/platinummonkey/geoqc/pkg/quality"
)

// Default returns all built-in dataset rules in report order
func Default(cfg *quality.Config) []quality.Rule {
	return []quality.Rule{
		// Schema rules
		NewRequiredFieldsRule(cfg),
		NewFieldTypesRule(cfg),
		NewFieldNamesRule(cfg),
		NewSpatialReferenceRule(cfg),

		// Attribute rules
		NewRequiredValuesRule(cfg),
		NewDomainValuesRule(cfg),
		NewDuplicateKeysRule(cfg),
		NewDuplicateAttributesRule(cfg),
		NewCompletenessRule(cfg),
		NewValueTypesRule(cfg),

		// Geometry rules
		NewNullGeometryRule(cfg),
		NewSelfIntersectionRule(cfg),
		NewCoordinateBoundsRule(cfg),
		NewFeatureComplexityRule(cfg),
		NewDuplicateGeometryRule(cfg),
	}
}

// Workspace returns all built-in workspace rules
func Workspace(cfg *quality.Config) []quality.WorkspaceRule {
	return []quality.WorkspaceRule{
		NewSpatialReferenceConsistencyRule(cfg),
	}
}

// Register registers the built-in rules with registry. Dataset rules are
// always registered and consult the config's per-dataset toggles when
// deciding applicability; workspace rules disabled in the config are left out.
func Register(registry *quality.Registry, cfg *quality.Config) error {
	if cfg == nil {
		cfg = quality.DefaultConfig()
	}
	for _, rule := range Default(cfg) {
		if err := registry.Register(rule); err != nil {
			return fmt.Errorf("register %s: %w", rule.ID(), err)
		}
	}
	for _, rule := range Workspace(cfg) {
		if !cfg.RuleEnabled(rule.ID()) {
			continue
		}
		if err := registry.RegisterWorkspace(rule); err != nil {
			return fmt.Errorf("register %s: %w", rule.ID(), err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in rules for cfg
func NewRegistry(cfg *quality.Config) (*quality.Registry, error) {
	registry := quality.NewRegistry()
	if err := Register(registry, cfg); err != nil {
		return nil, err
	}
	return registry, nil
}
