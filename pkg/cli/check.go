package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/geoqc/pkg/quality"
)

// parseFailOn parses the --fail-on threshold. "none" disables the findings
// exit code.
func parseFailOn(s string) (quality.Severity, error) {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return "", nil
	}
	sev, err := quality.ParseSeverity(s)
	if err != nil {
		return "", fmt.Errorf("invalid --fail-on: %w", err)
	}
	return sev, nil
}

func (a *app) checkCommand() *cobra.Command {
	var (
		format string
		failOn string
	)

	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a dataset or workspace once",
		Long: `Validate a dataset file (GeoJSON, CSV, GeoPackage, XLSX), a directory
workspace or an s3:// object or prefix, and print the report.

Exit status is 0 when no finding reaches the --fail-on severity, 2 when one
does and 1 when the input cannot be validated.`,
		Example: `  geoqc check parcels.geojson
  geoqc check ./survey --format json --fail-on warning
  geoqc check s3://gis/roads/ --rules roads.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(format)
			if err != nil {
				return err
			}
			threshold, err := parseFailOn(failOn)
			if err != nil {
				return err
			}

			result, err := a.run(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if err := NewEmitter(a.stdout, outFormat).Run(result); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			if threshold != "" && result.HasAtLeast(threshold) {
				return &ExitError{Code: ExitFindings}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().StringVar(&failOn, "fail-on", "error", "Exit with status 2 on findings at or above: error, warning, info, none")
	return cmd
}
