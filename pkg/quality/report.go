package quality

import "time"

// SeverityGroup holds the findings of one severity in their original order
type SeverityGroup struct {
	Severity Severity  `json:"severity" yaml:"severity"`
	Findings []Finding `json:"findings" yaml:"findings"`
}

// Summary counts findings. Every severity key is always present.
type Summary struct {
	Total      int              `json:"total" yaml:"total"`
	BySeverity map[Severity]int `json:"by_severity" yaml:"by_severity"`
	ByRule     map[string]int   `json:"by_rule" yaml:"by_rule"`
}

// Report is the aggregated result of evaluating one dataset
type Report struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	Dataset     string          `json:"dataset" yaml:"dataset"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Findings    []Finding       `json:"findings" yaml:"findings"`
	Groups      []SeverityGroup `json:"groups" yaml:"groups"`
	Summary     Summary         `json:"summary" yaml:"summary"`
}

// Aggregate folds findings into a report. It is a pure function of its
// arguments: the same input always yields an equal report.
func Aggregate(runID, datasetID string, generatedAt time.Time, findings []Finding) *Report {
	r := &Report{
		RunID:       runID,
		Dataset:     datasetID,
		GeneratedAt: generatedAt,
		Findings:    append(make([]Finding, 0, len(findings)), findings...),
		Groups:      make([]SeverityGroup, 0, len(Severities)),
		Summary: Summary{
			Total:      len(findings),
			BySeverity: make(map[Severity]int, len(Severities)),
			ByRule:     make(map[string]int),
		},
	}
	for _, sev := range Severities {
		r.Summary.BySeverity[sev] = 0
	}

	// severities outside the known set are grouped after INFO in first-seen order
	order := append([]Severity(nil), Severities...)
	bySeverity := make(map[Severity][]Finding)
	for _, f := range findings {
		if _, seen := r.Summary.BySeverity[f.Severity]; !seen {
			order = append(order, f.Severity)
		}
		r.Summary.BySeverity[f.Severity]++
		r.Summary.ByRule[f.Rule]++
		bySeverity[f.Severity] = append(bySeverity[f.Severity], f)
	}

	for _, sev := range order {
		if group := bySeverity[sev]; len(group) > 0 {
			r.Groups = append(r.Groups, SeverityGroup{Severity: sev, Findings: group})
		}
	}
	return r
}

// Count returns the number of findings with severity s
func (r *Report) Count(s Severity) int {
	return r.Summary.BySeverity[s]
}

// MaxSeverity returns the most severe finding's severity, or "" when clean
func (r *Report) MaxSeverity() Severity {
	for _, sev := range Severities {
		if r.Summary.BySeverity[sev] > 0 {
			return sev
		}
	}
	return ""
}

// HasErrors reports whether any finding is an ERROR
func (r *Report) HasErrors() bool {
	return r.Count(SeverityError) > 0
}

// HasAtLeast reports whether any finding is at least as severe as threshold
func (r *Report) HasAtLeast(threshold Severity) bool {
	for _, f := range r.Findings {
		if f.Severity.AtLeast(threshold) {
			return true
		}
	}
	return false
}
