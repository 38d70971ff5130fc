package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Process exit codes
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitFindings = 2
)

// ExitError carries a specific exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the geoqc command line with args and returns the process
// exit code. ctx is usually from signal.NotifyContext so that watch and
// schedule stop cleanly.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, version string) int {
	a := newApp(version, stdout, stderr)
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(stderr, "Error:", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return ExitFailure
}

// rootCommand creates the root command
func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "geoqc",
		Short: "geoqc - quality control for spatial datasets",
		Long: `geoqc checks spatial datasets and workspaces for schema, attribute and
geometry problems and reports findings grouped by severity.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.rulesFile, "rules", "r", "", "Rule configuration file (default: geoqc.yaml next to the input)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.opts.logFormat, "log-format", "", "Log format: text, json")
	flags.IntVarP(&a.opts.workers, "workers", "w", 0, "Workspace members evaluated in parallel")
	flags.StringVar(&a.opts.storeDSN, "store", "", "Report history database (postgres:// URL or sqlite path)")
	flags.StringVar(&a.opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after each run")

	root.AddCommand(
		a.checkCommand(),
		a.rulesCommand(),
		a.watchCommand(),
		a.scheduleCommand(),
		a.historyCommand(),
		a.initCommand(),
	)
	return root
}
