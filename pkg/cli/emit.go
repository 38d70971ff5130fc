package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/geoqc/pkg/quality"
	"github.com/platinummonkey/geoqc/pkg/storage"
)

// Format is a report output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (must be text, json, or yaml)", s)
	}
}

// Emitter renders results. It is the only place that formats reports.
type Emitter struct {
	w      io.Writer
	format Format
}

// NewEmitter creates an emitter writing to w
func NewEmitter(w io.Writer, format Format) *Emitter {
	return &Emitter{w: w, format: format}
}

func (e *Emitter) encode(v interface{}) error {
	switch e.format {
	case FormatJSON:
		enc := json.NewEncoder(e.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(e.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %s is not a structured format", e.format)
	}
}

// Run writes a validation run
func (e *Emitter) Run(result *quality.RunResult) error {
	if e.format != FormatText {
		return e.encode(result)
	}

	kind := "dataset"
	if result.Workspace {
		kind = "workspace"
	}
	fmt.Fprintf(e.w, "Run %s of %s %s\n", result.RunID, kind, result.Path)

	for _, rep := range result.Reports {
		e.textReport(rep, rep.Dataset)
	}
	if result.WorkspaceReport != nil {
		e.textReport(result.WorkspaceReport, "workspace "+result.WorkspaceReport.Dataset)
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(e.w, "\nSkipped:\n")
		for _, s := range result.Skipped {
			fmt.Fprintf(e.w, "  %s: %s\n", s.Name, s.Error)
		}
	}

	fmt.Fprintf(e.w, "\nSummary: %d datasets, %d skipped, %d findings",
		len(result.Reports), len(result.Skipped), result.TotalFindings())
	if highest := result.MaxSeverity(); highest != "" {
		fmt.Fprintf(e.w, " (highest %s)", highest)
	}
	fmt.Fprintln(e.w)
	return nil
}

// Report writes a single report
func (e *Emitter) Report(rep *quality.Report) error {
	if e.format != FormatText {
		return e.encode(rep)
	}
	e.textReport(rep, rep.Dataset)
	return nil
}

func (e *Emitter) textReport(rep *quality.Report, title string) {
	fmt.Fprintf(e.w, "\n%s: %s\n", title, countLine(rep))
	if rep.Summary.Total == 0 {
		return
	}

	tw := tabwriter.NewWriter(e.w, 0, 0, 2, ' ', 0)
	for _, group := range rep.Groups {
		for _, f := range group.Findings {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Severity, f.Rule, f.Target, f.Message)
			if f.Remediation != "" {
				fmt.Fprintf(tw, "  \t\t\t-> %s\n", f.Remediation)
			}
		}
	}
	tw.Flush()
}

func countLine(rep *quality.Report) string {
	if rep.Summary.Total == 0 {
		return "no findings"
	}
	return fmt.Sprintf("%d findings (%d errors, %d warnings, %d info)",
		rep.Summary.Total,
		rep.Count(quality.SeverityError),
		rep.Count(quality.SeverityWarning),
		rep.Count(quality.SeverityInfo))
}

// ruleInfo describes a built-in rule for listing
type ruleInfo struct {
	ID          string           `json:"id" yaml:"id"`
	Scope       string           `json:"scope" yaml:"scope"`
	Category    quality.Category `json:"category" yaml:"category"`
	Severity    quality.Severity `json:"severity" yaml:"severity"`
	Enabled     bool             `json:"enabled" yaml:"enabled"`
	Description string           `json:"description" yaml:"description"`
}

// Rules writes the rule catalogue
func (e *Emitter) Rules(rules []ruleInfo) error {
	if e.format != FormatText {
		return e.encode(rules)
	}

	fmt.Fprintf(e.w, "Available rules (%d):\n\n", len(rules))
	tw := tabwriter.NewWriter(e.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tSCOPE\tCATEGORY\tSEVERITY\tENABLED\tDESCRIPTION")
	for _, r := range rules {
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Scope, r.Category, r.Severity, enabled, r.Description)
	}
	return tw.Flush()
}

// Runs writes the run history
func (e *Emitter) Runs(runs []storage.RunSummary) error {
	if e.format != FormatText {
		return e.encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.w, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(e.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPATH\tDATASETS\tSKIPPED\tFINDINGS\tHIGHEST")
	for _, r := range runs {
		highest := string(r.MaxSeverity)
		if highest == "" {
			highest = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Path,
			r.Datasets, r.Skipped, r.Findings, highest)
	}
	return tw.Flush()
}
