package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/geoqc/pkg/quality"
	"github.com/platinummonkey/geoqc/pkg/quality/checks"
)

// catalogue lists the built-in rules with their state under cfg
func catalogue(cfg *quality.Config) []ruleInfo {
	var out []ruleInfo
	for _, r := range checks.Default(cfg) {
		out = append(out, describeRule(r, "dataset", cfg.RuleEnabled(r.ID())))
	}
	for _, r := range checks.Workspace(cfg) {
		out = append(out, describeRule(r, "workspace", cfg.RuleEnabled(r.ID())))
	}
	return out
}

func describeRule(r quality.Descriptor, scope string, enabled bool) ruleInfo {
	return ruleInfo{
		ID:          r.ID(),
		Scope:       scope,
		Category:    r.Category(),
		Severity:    r.Severity(),
		Enabled:     enabled,
		Description: r.Description(),
	}
}

func (a *app) rulesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rules [path]",
		Short: "List the built-in rules",
		Long: `List every built-in rule with its category, default severity and whether
the rule configuration for path (default: the current directory) enables it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(format)
			if err != nil {
				return err
			}
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := a.ruleConfig(path)
			if err != nil {
				return err
			}
			return NewEmitter(a.stdout, outFormat).Rules(catalogue(cfg))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	return cmd
}
