package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/geoqc/pkg/quality"
	"github.com/platinummonkey/geoqc/pkg/trigger"
)

// repeatedRun returns the run function shared by watch and schedule: each
// run reuses the finding cache and prints its report
func (a *app) repeatedRun(input string, outFormat Format) trigger.RunFunc {
	var cache quality.FindingCache
	if a.cfg.Cache.Size > 0 {
		cache = trigger.NewReportCache(a.cfg.Cache.Size, a.cfg.Cache.TTL, a.metrics)
	}
	emitter := NewEmitter(a.stdout, outFormat)

	return func(ctx context.Context) error {
		result, err := a.run(ctx, input, cache)
		if err != nil {
			return err
		}
		if err := emitter.Run(result); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}
}

func (a *app) watchCommand() *cobra.Command {
	var (
		format      string
		debounce    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Validate again whenever the dataset or workspace changes",
		Long: `Validate path once, then again every time files under it change. Datasets
whose file and rule configuration are unchanged are served from the finding
cache (GEOQC_CACHE_SIZE, GEOQC_CACHE_TTL).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.Telemetry.MetricsAddr
			}
			if err := a.serveMetrics(metricsAddr); err != nil {
				return err
			}

			w, err := trigger.NewWatcher(args[0], a.repeatedRun(args[0], outFormat),
				trigger.WithDebounce(debounce),
				trigger.WithInitialRun(),
				trigger.WithWatcherLogger(a.logger),
			)
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().DurationVar(&debounce, "debounce", trigger.DefaultDebounce, "Quiet period before a run")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}
