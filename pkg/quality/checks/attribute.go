package checks

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/platinummonkey/geoqc/pkg/dataset"
	"github.com/platinummonkey/geoqc/pkg/quality"
)

// identityFields are system-managed ids that never count as attributes
var identityFields = map[string]bool{
	"fid":      true,
	"objectid": true,
	"oid":      true,
}

func isIdentityField(name string) bool {
	return identityFields[strings.ToLower(name)]
}

// RequiredValuesRule checks that required fields hold a value in every row
type RequiredValuesRule struct {
	BaseRule
}

// NewRequiredValuesRule creates a new required values rule
func NewRequiredValuesRule(cfg *quality.Config) *RequiredValuesRule {
	return &RequiredValuesRule{
		BaseRule: newBaseRule(cfg, "required-values", quality.CategoryAttribute, quality.SeverityError,
			"Required fields must not be null or blank"),
	}
}

func (r *RequiredValuesRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(presentFields(h, r.fields(h).Required)) > 0
}

func (r *RequiredValuesRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	required := presentFields(h, r.fields(h).Required)
	findings := make([]quality.Finding, 0)

	err := scanRows(ctx, h, func(row dataset.Row) {
		for _, name := range required {
			if !dataset.IsNullOrBlank(row.Value(name)) {
				continue
			}
			findings = append(findings, r.finding(quality.FeatureTarget(row.FID, name),
				fmt.Sprintf("Required field '%s' is empty", name),
				fmt.Sprintf("Populate '%s' for feature %d", name, row.FID)))
		}
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// DomainValuesRule checks values against coded value and range domains
type DomainValuesRule struct {
	BaseRule
}

// NewDomainValuesRule creates a new domain values rule
func NewDomainValuesRule(cfg *quality.Config) *DomainValuesRule {
	return &DomainValuesRule{
		BaseRule: newBaseRule(cfg, "domain-values", quality.CategoryAttribute, quality.SeverityError,
			"Values must fall inside the field's domain"),
	}
}

type fieldDomain struct {
	field  string
	domain *dataset.Domain
}

// domains merges dataset-declared domains with configured ones, the config
// taking precedence, in schema order
func (r *DomainValuesRule) domains(h *dataset.Handle) []fieldDomain {
	configured := r.fields(h).Domains
	out := make([]fieldDomain, 0)
	for _, f := range h.Fields {
		d := f.Domain
		for name, cd := range configured {
			if strings.EqualFold(name, f.Name) {
				d = &cd
				break
			}
		}
		if d.IsZero() {
			continue
		}
		out = append(out, fieldDomain{field: f.Name, domain: d})
	}
	return out
}

func (r *DomainValuesRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(r.domains(h)) > 0
}

func (r *DomainValuesRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	domains := r.domains(h)
	findings := make([]quality.Finding, 0)

	err := scanRows(ctx, h, func(row dataset.Row) {
		for _, fd := range domains {
			v := row.Value(fd.field)
			if fd.domain.Contains(v) {
				continue
			}
			findings = append(findings, r.finding(quality.FeatureTarget(row.FID, fd.field),
				fmt.Sprintf("Value '%s' of field '%s' is outside its domain %s", dataset.FormatValue(v), fd.field, fd.domain),
				fmt.Sprintf("Use a value %s", fd.domain)))
		}
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// DuplicateKeysRule checks that key fields identify rows uniquely
type DuplicateKeysRule struct {
	BaseRule
}

// NewDuplicateKeysRule creates a new duplicate keys rule
func NewDuplicateKeysRule(cfg *quality.Config) *DuplicateKeysRule {
	return &DuplicateKeysRule{
		BaseRule: newBaseRule(cfg, "duplicate-keys", quality.CategoryAttribute, quality.SeverityError,
			"Key fields must be unique"),
	}
}

func (r *DuplicateKeysRule) AppliesTo(h *dataset.Handle) bool {
	keys := r.fields(h).Keys
	return r.enabled(h) && len(keys) > 0 && len(presentFields(h, keys)) == len(keys)
}

func (r *DuplicateKeysRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	keys := presentFields(h, r.fields(h).Keys)
	label := strings.Join(keys, ",")
	first := make(map[string]int64)
	findings := make([]quality.Finding, 0)

	err := scanRows(ctx, h, func(row dataset.Row) {
		parts := make([]string, len(keys))
		for i, k := range keys {
			v := row.Value(k)
			if dataset.IsNullOrBlank(v) {
				return
			}
			parts[i] = dataset.FormatValue(v)
		}
		key := strings.Join(parts, "\x1f")

		fid, seen := first[key]
		if !seen {
			first[key] = row.FID
			return
		}
		findings = append(findings, r.finding(quality.FeatureTarget(row.FID, label),
			fmt.Sprintf("Key %s = %s duplicates feature %d", label, strings.Join(parts, ","), fid),
			"Assign a unique key value"))
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// DuplicateAttributesRule flags rows whose attribute values repeat an
// earlier row exactly
type DuplicateAttributesRule struct {
	BaseRule
}

// NewDuplicateAttributesRule creates a new duplicate attributes rule
func NewDuplicateAttributesRule(cfg *quality.Config) *DuplicateAttributesRule {
	return &DuplicateAttributesRule{
		BaseRule: newBaseRule(cfg, "duplicate-attributes", quality.CategoryAttribute, quality.SeverityWarning,
			"Rows should not repeat the attributes of another row"),
	}
}

// compared returns the fields taking part in the comparison: everything but
// identity and key fields
func (r *DuplicateAttributesRule) compared(h *dataset.Handle) []string {
	keys := make(map[string]bool)
	for _, k := range presentFields(h, r.fields(h).Keys) {
		keys[k] = true
	}
	out := make([]string, 0, len(h.Fields))
	for _, f := range h.Fields {
		if isIdentityField(f.Name) || keys[f.Name] {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func (r *DuplicateAttributesRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(r.compared(h)) > 0
}

func (r *DuplicateAttributesRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	fields := r.compared(h)
	first := make(map[[sha256.Size]byte]int64)
	findings := make([]quality.Finding, 0)

	err := scanRows(ctx, h, func(row dataset.Row) {
		hash := sha256.New()
		blank := true
		for _, name := range fields {
			v := row.Value(name)
			if !dataset.IsNullOrBlank(v) {
				blank = false
			}
			fmt.Fprintf(hash, "%T:%s\x1f", v, dataset.FormatValue(v))
		}
		if blank {
			return
		}

		var sum [sha256.Size]byte
		copy(sum[:], hash.Sum(nil))
		fid, seen := first[sum]
		if !seen {
			first[sum] = row.FID
			return
		}
		findings = append(findings, r.finding(quality.FeatureTarget(row.FID, ""),
			fmt.Sprintf("Attributes duplicate feature %d", fid),
			"Remove the duplicate row or correct its attributes"))
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// CompletenessRule reports optional fields that are mostly empty
type CompletenessRule struct {
	BaseRule
}

// NewCompletenessRule creates a new completeness rule
func NewCompletenessRule(cfg *quality.Config) *CompletenessRule {
	return &CompletenessRule{
		BaseRule: newBaseRule(cfg, "completeness", quality.CategoryAttribute, quality.SeverityInfo,
			"Fields should be populated for most rows"),
	}
}

func (r *CompletenessRule) optional(h *dataset.Handle) []string {
	required := make(map[string]bool)
	for _, name := range presentFields(h, r.fields(h).Required) {
		required[name] = true
	}
	out := make([]string, 0, len(h.Fields))
	for _, f := range h.Fields {
		if isIdentityField(f.Name) || required[f.Name] {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func (r *CompletenessRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(r.optional(h)) > 0
}

func (r *CompletenessRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	fields := r.optional(h)
	empty := make([]int, len(fields))
	total := 0

	err := scanRows(ctx, h, func(row dataset.Row) {
		total++
		for i, name := range fields {
			if dataset.IsNullOrBlank(row.Value(name)) {
				empty[i]++
			}
		}
	})
	if err != nil {
		return nil, err
	}

	findings := make([]quality.Finding, 0)
	if total == 0 {
		return findings, nil
	}
	threshold := r.config.Thresholds.Completeness
	for i, name := range fields {
		share := float64(empty[i]) / float64(total)
		if share <= threshold {
			continue
		}
		findings = append(findings, r.finding(quality.FieldTarget(name),
			fmt.Sprintf("Field '%s' is empty in %.1f%% of rows (%d of %d)", name, share*100, empty[i], total),
			"Populate the field or drop it from the schema"))
	}
	return findings, nil
}

// ValueTypesRule reports fields whose values fit a narrower type than the
// declared one
type ValueTypesRule struct {
	BaseRule
}

// NewValueTypesRule creates a new value types rule
func NewValueTypesRule(cfg *quality.Config) *ValueTypesRule {
	return &ValueTypesRule{
		BaseRule: newBaseRule(cfg, "value-types", quality.CategoryAttribute, quality.SeverityInfo,
			"Field types should match the values they hold"),
	}
}

func (r *ValueTypesRule) candidates(h *dataset.Handle) []dataset.FieldSpec {
	out := make([]dataset.FieldSpec, 0)
	for _, f := range h.Fields {
		if isIdentityField(f.Name) {
			continue
		}
		if f.Type == dataset.FieldDouble || f.Type == dataset.FieldString {
			out = append(out, f)
		}
	}
	return out
}

func (r *ValueTypesRule) AppliesTo(h *dataset.Handle) bool {
	return r.enabled(h) && len(r.candidates(h)) > 0
}

func (r *ValueTypesRule) Run(ctx context.Context, h *dataset.Handle) ([]quality.Finding, error) {
	fields := r.candidates(h)
	narrow := make([]bool, len(fields))
	seen := make([]bool, len(fields))
	for i := range narrow {
		narrow[i] = true
	}

	err := scanRows(ctx, h, func(row dataset.Row) {
		for i, f := range fields {
			if !narrow[i] {
				continue
			}
			v := row.Value(f.Name)
			if dataset.IsNullOrBlank(v) {
				continue
			}
			seen[i] = true
			if f.Type == dataset.FieldDouble {
				narrow[i] = isIntegral(v)
			} else {
				narrow[i] = isNumeric(v)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	findings := make([]quality.Finding, 0)
	for i, f := range fields {
		if !narrow[i] || !seen[i] {
			continue
		}
		if f.Type == dataset.FieldDouble {
			findings = append(findings, r.finding(quality.FieldTarget(f.Name),
				fmt.Sprintf("Field '%s' is double but holds only integer values", f.Name),
				fmt.Sprintf("Change the type of '%s' to integer", f.Name)))
		} else {
			findings = append(findings, r.finding(quality.FieldTarget(f.Name),
				fmt.Sprintf("Field '%s' is string but holds only numeric values", f.Name),
				fmt.Sprintf("Change the type of '%s' to a numeric type", f.Name)))
		}
	}
	return findings, nil
}

func isIntegral(v any) bool {
	switch val := v.(type) {
	case int64:
		return true
	case float64:
		return !math.IsInf(val, 0) && val == math.Trunc(val)
	}
	return false
}

func isNumeric(v any) bool {
	switch val := v.(type) {
	case int64, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return err == nil
	}
	return false
}
