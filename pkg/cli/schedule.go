package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/geoqc/pkg/trigger"
)

func (a *app) scheduleCommand() *cobra.Command {
	var (
		format      string
		spec        string
		runNow      bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "schedule <path>",
		Short: "Validate on a cron schedule",
		Long: `Validate path on a cron schedule until interrupted. The schedule is a
five-field cron expression or a descriptor such as @hourly or "@every 30m".
A run still in progress when the next one is due causes that one to be skipped.`,
		Example: `  geoqc schedule ./survey --cron "0 6 * * *" --store history.db
  geoqc schedule s3://gis/roads/ --cron "@every 1h" --metrics-addr :9102`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(format)
			if err != nil {
				return err
			}
			run := a.repeatedRun(args[0], outFormat)
			scheduler, err := trigger.NewScheduler(spec, run, a.logger)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.Telemetry.MetricsAddr
			}
			if err := a.serveMetrics(metricsAddr); err != nil {
				return err
			}

			if runNow {
				if err := run(cmd.Context()); err != nil {
					a.logger.WithError(err).Error("Initial validation failed")
				}
			}
			return scheduler.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().StringVar(&spec, "cron", "@hourly", "Cron expression or descriptor")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Also validate immediately on start")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}
