package checks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/quality"
)

// RequiredFieldsRule checks that every configured required field exists
type RequiredFieldsRule struct {
	BaseRule
}

// NewRequiredFieldsRule creates a new required fields rule
func NewRequiredFieldsRule(cfg *quality.Config) *RequiredFieldsRule {
	return &RequiredFieldsRule{
		BaseRule: newBaseRule(cfg, "required-fields", quality.CategorySchema, quality.SeverityError,
			"Configured required fields must exist in the dataset schema"),
	}
}

func (r *RequiredFieldsRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(r.fields(h).Required) > 0
}

func (r *RequiredFieldsRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	findings := make([]quality.Finding, 0)
	for _, name := range r.fields(h).Required {
		if _, ok := h.Field(name); ok {
			continue
		}
		findings = append(findings, r.finding(quality.FieldTarget(name),
			fmt.Sprintf("Required field '%s' is missing", name),
			"Add the field to the dataset schema"))
	}
	return findings, nil
}

// FieldTypesRule checks declared field types against the configured types
type FieldTypesRule struct {
	BaseRule
}

// NewFieldTypesRule creates a new field types rule
func NewFieldTypesRule(cfg *quality.Config) *FieldTypesRule {
	return &FieldTypesRule{
		BaseRule: newBaseRule(cfg, "field-types", quality.CategorySchema, quality.SeverityError,
			"Fields must have the configured data type"),
	}
}

func (r *FieldTypesRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(r.fields(h).Types) > 0
}

func (r *FieldTypesRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	types := r.fields(h).Types
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	findings := make([]quality.Finding, 0)
	for _, name := range names {
		want, err := dataset.ParseFieldType(types[name])
		if err != nil {
			return nil, err
		}
		f, ok := h.Field(name)
		if !ok || typeSatisfies(f.Type, want) {
			continue
		}
		findings = append(findings, r.finding(quality.FieldTarget(f.Name),
			fmt.Sprintf("Field '%s' has type %s, expected %s", f.Name, f.Type, want),
			fmt.Sprintf("Change the type of '%s' to %s", f.Name, want)))
	}
	return findings, nil
}

// typeSatisfies treats integer fields as valid where a double is expected
func typeSatisfies(actual, want dataset.FieldType) bool {
	return actual == want || (want == dataset.FieldDouble && actual == dataset.FieldInteger)
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][_A-Za-z0-9]*$`)

// FieldNamesRule checks that field names are portable identifiers
type FieldNamesRule struct {
	BaseRule
}

// NewFieldNamesRule creates a new field names rule
func NewFieldNamesRule(cfg *quality.Config) *FieldNamesRule {
	return &FieldNamesRule{
		BaseRule: newBaseRule(cfg, "field-names", quality.CategorySchema, quality.SeverityWarning,
			"Field names must start with a letter and contain only letters, digits and underscores"),
	}
}

func (r *FieldNamesRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(h.Fields) > 0
}

func (r *FieldNamesRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	findings := make([]quality.Finding, 0)
	for _, f := range h.Fields {
		if fieldNamePattern.MatchString(f.Name) {
			continue
		}
		findings = append(findings, r.finding(quality.FieldTarget(f.Name),
			fmt.Sprintf("Field name '%s' is not a valid identifier", f.Name),
			fmt.Sprintf("Rename the field to '%s'", suggestFieldName(f.Name))))
	}
	return findings, nil
}

// suggestFieldName replaces invalid characters with underscores
func suggestFieldName(name string) string {
	var b strings.Builder
	for _, c := range strings.TrimSpace(name) {
		if c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_') {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	s := b.String()
	if s == "" || !unicode.IsLetter(rune(s[0])) {
		s = "f_" + s
	}
	return s
}

// SpatialReferenceRule checks that feature datasets declare a spatial reference
type SpatialReferenceRule struct {
	BaseRule
}

// NewSpatialReferenceRule creates a new spatial reference rule
func NewSpatialReferenceRule(cfg *quality.Config) *SpatialReferenceRule {
	return &SpatialReferenceRule{
		BaseRule: newBaseRule(cfg, "spatial-reference", quality.CategorySchema, quality.SeverityWarning,
			"Feature datasets must declare a known spatial reference"),
	}
}

func (r *SpatialReferenceRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && h.GeometryType.IsSpatial()
}

func (r *SpatialReferenceRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	if h.SpatialRef.Known() {
		return nil, nil
	}
	return []quality.Finding{r.finding(quality.DatasetTarget(h.Name),
		fmt.Sprintf("Dataset '%s' has an Unknown spatial reference", h.Name),
		"Define the coordinate system of the dataset")}, nil
}
