// Command xtract profiles tabular data, evaluates alert rules against it and
// exchanges the results with a remote catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xtract/internal/config"
	"xtract/internal/logging"
	"xtract/internal/metrics"
	"xtract/internal/metrics/datadog"
	"xtract/internal/metrics/prompush"

	// Register every query engine; engine.kind in the config picks one.
	_ "xtract/internal/engine/mssql"
	_ "xtract/internal/engine/postgres"
	_ "xtract/internal/engine/sqlite"

	_ "github.com/microsoft/go-mssqldb"
)

var version = "0.1.0"

func main() {
	if err := runCLI(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "xtract:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once PersistentPreRunE ran.
type app struct {
	cfgPath string
	verbose bool

	cfg config.Config
	log *zap.Logger

	stdin          io.Reader
	stdout, stderr io.Writer

	cleanup []func()
}

func runCLI(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, log: zap.NewNop()}
	defer a.teardown()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xtract",
		Short:         "Profile datasets and evaluate alert rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file (built-in defaults when empty)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(
		a.versionCmd(),
		a.profileCmd(),
		a.alertsCmd(),
		a.diffCmd(),
		a.loginCmd(),
		a.getCmd(),
		a.publishCmd(),
	)
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.stdout, "xtract v%s\n", version)
			fmt.Fprintf(a.stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

// setup loads and validates the config, then installs logging and metrics.
func (a *app) setup(ctx context.Context) error {
	cfg := config.Default()
	if a.cfgPath != "" {
		var err error
		if cfg, err = config.Load(a.cfgPath); err != nil {
			return err
		}
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(issues, "; "))
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg

	if err := logging.Init(cfg.Logging); err != nil {
		return err
	}
	a.log = logging.Get()
	a.cleanup = append(a.cleanup, logging.Sync)

	a.setupMetrics(ctx)
	return nil
}

// setupMetrics installs the configured backend. A backend that fails to
// initialise is logged and replaced by the no-op backend.
func (a *app) setupMetrics(ctx context.Context) {
	m := a.cfg.Metrics
	job := m.Job
	if job == "" {
		job = "xtract"
	}

	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(job, m.PushgatewayURL, nil)
		if err != nil {
			a.log.Warn("metrics: pushgateway backend unavailable, using nop", zap.Error(err))
			return
		}
		a.log.Debug("metrics enabled", zap.String("backend", m.Backend), zap.String("url", m.PushgatewayURL), zap.String("job", job))
		metrics.SetBackend(b)
		a.cleanup = append(a.cleanup, func() {
			if err := metrics.Flush(); err != nil {
				a.log.Warn("metrics: flush failed", zap.Error(err))
			}
			metrics.SetBackend(nil)
		})

	case "datadog":
		tags := append([]string(nil), m.Tags...)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			a.log.Warn("metrics: datadog backend unavailable, using nop", zap.Error(err))
			return
		}
		a.log.Debug("metrics enabled", zap.String("backend", m.Backend), zap.String("job", job))
		metrics.SetBackend(b)
		a.cleanup = append(a.cleanup, func() {
			if err := b.Close(); err != nil {
				a.log.Warn("metrics: datadog close failed", zap.Error(err))
			}
			metrics.SetBackend(nil)
		})
	}
}

// teardown runs cleanups in reverse order.
func (a *app) teardown() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// closeOnExit registers c to be closed after the command finishes.
func (a *app) closeOnExit(what string, c io.Closer) {
	a.cleanup = append(a.cleanup, func() {
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			a.log.Warn("close failed", zap.String("what", what), zap.Error(err))
		}
	})
}
