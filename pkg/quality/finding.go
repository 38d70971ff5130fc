package quality

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity indicates how serious a finding is
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Severities lists the severities in report order, most severe first
var Severities = []Severity{SeverityError, SeverityWarning, SeverityInfo}

// Rank orders severities; unknown severities rank 0
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as threshold
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank() && s.Rank() > 0
}

// ParseSeverity parses a severity name, ignoring case
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return SeverityInfo, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "ERROR":
		return SeverityError, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Category groups related rules
type Category string

const (
	CategorySchema    Category = "schema"
	CategoryAttribute Category = "attribute"
	CategoryGeometry  Category = "geometry"
	CategoryWorkspace Category = "workspace"
	CategoryEngine    Category = "engine"
)

// TargetKind says what a finding points at
type TargetKind string

const (
	TargetDataset TargetKind = "dataset"
	TargetField   TargetKind = "field"
	TargetFeature TargetKind = "feature"
	TargetRule    TargetKind = "rule"
)

// Target locates a finding
type Target struct {
	Kind      TargetKind `json:"kind" yaml:"kind"`
	Dataset   string     `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Field     string     `json:"field,omitempty" yaml:"field,omitempty"`
	FeatureID int64      `json:"feature_id,omitempty" yaml:"feature_id,omitempty"`
	Rule      string     `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// DatasetTarget points at a whole dataset
func DatasetTarget(name string) Target {
	return Target{Kind: TargetDataset, Dataset: name}
}

// FieldTarget points at a field of the dataset being checked
func FieldTarget(field string) Target {
	return Target{Kind: TargetField, Field: field}
}

// FeatureTarget points at one row, optionally narrowed to a field
func FeatureTarget(fid int64, field string) Target {
	return Target{Kind: TargetFeature, FeatureID: fid, Field: field}
}

// RuleTarget points at a rule, used for engine findings
func RuleTarget(id string) Target {
	return Target{Kind: TargetRule, Rule: id}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetField:
		return "field " + t.Field
	case TargetFeature:
		s := "feature " + strconv.FormatInt(t.FeatureID, 10)
		if t.Field != "" {
			s += " field " + t.Field
		}
		return s
	case TargetRule:
		return "rule " + t.Rule
	default:
		if t.Dataset != "" {
			return "dataset " + t.Dataset
		}
		return "dataset"
	}
}

// Finding is one detected issue. Findings are values and are never mutated
// after a rule returns them.
type Finding struct {
	Rule        string   `json:"rule" yaml:"rule"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Category    Category `json:"category" yaml:"category"`
	Target      Target   `json:"target" yaml:"target"`
	Message     string   `json:"message" yaml:"message"`
	Remediation string   `json:"remediation,omitempty" yaml:"remediation,omitempty"`

	// Cause is set on engine findings to the *RuleExecutionError
	Cause error `json:"-" yaml:"-"`
}
