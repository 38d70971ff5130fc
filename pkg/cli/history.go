package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) historyCommand() *cobra.Command {
	var (
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past validation runs",
		Long: `List validation runs stored in the report history (--store or
GEOQC_STORE_DSN), newest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return NewEmitter(a.stdout, outFormat).Runs(runs)
		},
	}

	cmd.PersistentFlags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list, 0 for all")
	cmd.AddCommand(a.historyShowCommand(&format))
	return cmd
}

func (a *app) historyShowCommand(format *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id> [dataset...]",
		Short: "Print the stored reports of a run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(*format)
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			runID, datasets := args[0], args[1:]
			if len(datasets) == 0 {
				if datasets, err = store.ReportDatasets(cmd.Context(), runID); err != nil {
					return err
				}
			}

			emitter := NewEmitter(a.stdout, outFormat)
			for _, name := range datasets {
				report, err := store.LoadReport(cmd.Context(), runID, name)
				if err != nil {
					return err
				}
				if err := emitter.Report(report); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
