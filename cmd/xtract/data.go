package main

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xtract/internal/alert"
	"xtract/internal/engine"
	"xtract/internal/loader"
	"xtract/internal/loader/csvload"
	"xtract/internal/loader/htmltable"
	"xtract/internal/profile"
	"xtract/internal/progress"
	"xtract/internal/rules"
	"xtract/internal/run"
	"xtract/internal/table"
)

// inputFlags are shared by every command that reads a dataset.
type inputFlags struct {
	format        string
	delimiter     string
	charset       string
	selector      string
	inferBooleans bool
	decodeEmails  bool
	strict        bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.format, "format", "", "input format: csv or html (detected from the extension when empty)")
	fl.StringVar(&f.delimiter, "delimiter", "", "CSV field delimiter (sniffed when empty)")
	fl.StringVar(&f.charset, "charset", "", "input charset, e.g. windows-1250 (UTF-8 when empty)")
	fl.StringVar(&f.selector, "selector", "table", "CSS selector of the HTML table")
	fl.BoolVar(&f.inferBooleans, "infer-booleans", false, "type true/false columns as booleans")
	fl.BoolVar(&f.decodeEmails, "decode-emails", false, "decode obfuscated e-mail links in HTML cells")
	fl.BoolVar(&f.strict, "strict", false, "fail on CSV rows with a wrong field count instead of skipping them")
}

// load reads location into a table. Errors carry the load stage.
func (a *app) load(ctx context.Context, location string, f inputFlags) (*table.Table, error) {
	t, err := a.loadTable(ctx, location, f)
	return t, run.Wrap(run.StageLoad, err)
}

func (a *app) loadTable(ctx context.Context, location string, f inputFlags) (*table.Table, error) {
	format := f.format
	if format == "" {
		format = loader.Format(location)
	}
	if format == "" {
		format = "csv"
	}

	var delim rune
	if f.delimiter != "" {
		if f.delimiter == `\t` {
			f.delimiter = "\t"
		}
		r, size := utf8.DecodeRuneInString(f.delimiter)
		if size != len(f.delimiter) {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", f.delimiter)
		}
		delim = r
	}

	s3 := a.cfg.S3
	rc, err := loader.Open(ctx, location, loader.Options{
		S3: loader.S3Config{
			Region:    s3.Region,
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			PathStyle: s3.PathStyle,
		},
		Timeout: a.cfg.API.Timeout,
		Stdin:   a.stdin,
	})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	switch format {
	case "csv":
		t, st, err := csvload.Decode(rc, csvload.Options{
			Delimiter:     delim,
			Charset:       f.charset,
			InferBooleans: f.inferBooleans,
			Strict:        f.strict,
		})
		if err != nil {
			return nil, err
		}
		if st.Skipped > 0 {
			a.log.Warn("skipped malformed rows", zap.String("input", location), zap.Int("skipped", st.Skipped))
		}
		a.log.Debug("csv loaded", zap.String("input", location), zap.Int("rows", st.Rows), zap.String("delimiter", string(st.Comma)))
		return t, nil
	case "html":
		return htmltable.Decode(rc, htmltable.Options{
			Selector:      f.selector,
			InferBooleans: f.inferBooleans,
			DecodeEmails:  f.decodeEmails,
		})
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func (a *app) readRules(path string) (*rules.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, run.Wrap(run.StageCompile, fmt.Errorf("open rules: %w", err))
	}
	defer f.Close()
	return run.ParseRules(f)
}

func (a *app) profiler(workers int, showProgress bool) *profile.Profiler {
	if workers <= 0 {
		workers = a.cfg.Profile.Workers
	}
	opts := []profile.Option{profile.WithWorkers(workers), profile.WithLogger(a.log)}
	if showProgress {
		opts = append(opts, profile.WithProgress(progress.Stderr(a.log).Func()))
	}
	return profile.New(opts...)
}

// evaluator opens the configured engine. It is closed when the command ends.
func (a *app) evaluator(ctx context.Context) (*alert.Evaluator, error) {
	eng, err := engine.New(ctx, engine.Config{Kind: a.cfg.Engine.Kind, DSN: a.cfg.Engine.DSN})
	if err != nil {
		return nil, run.Wrap(run.StageExecute, err)
	}
	a.closeOnExit("engine", eng)
	return alert.New(eng,
		alert.WithLegacyConcat(a.cfg.Rules.LegacyConcat),
		alert.WithLogger(a.log),
	), nil
}

// writeJSON writes v indented to the --output file, or stdout when empty.
func (a *app) writeJSON(output string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	b = append(b, '\n')
	if output == "" || output == "-" {
		_, err = a.stdout.Write(b)
		return err
	}
	if err := os.WriteFile(output, b, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	a.log.Info("output written", zap.String("path", output))
	return nil
}

func (a *app) reportFailures(rep *alert.Report) {
	for _, f := range rep.Failures {
		fmt.Fprintf(a.stderr, "warning: %v\n", f)
	}
}

func (a *app) profileCmd() *cobra.Command {
	var (
		in      inputFlags
		output  string
		workers int
		noBar   bool
	)
	cmd := &cobra.Command{
		Use:   "profile <input>",
		Short: "Profile a CSV or HTML table (path, file://, http(s)://, s3:// or - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := a.load(ctx, args[0], in)
			if err != nil {
				return err
			}
			res, err := run.Run(ctx, run.Input{Table: t, DataSource: args[0]}, run.Options{
				Profiler: a.profiler(workers, !noBar),
				Logger:   a.log,
			})
			if err != nil {
				return err
			}
			return a.writeJSON(output, res.Profile)
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the profile to this file instead of stdout")
	cmd.Flags().IntVar(&workers, "workers", 0, "columns profiled concurrently (profile.workers when 0)")
	cmd.Flags().BoolVar(&noBar, "no-progress", false, "do not draw progress bars")
	return cmd
}

func (a *app) alertsCmd() *cobra.Command {
	var (
		in        inputFlags
		rulesPath string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "alerts <input>",
		Short: "Evaluate alert rules against a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := a.readRules(rulesPath)
			if err != nil {
				return err
			}
			t, err := a.load(ctx, args[0], in)
			if err != nil {
				return err
			}
			ev, err := a.evaluator(ctx)
			if err != nil {
				return err
			}
			res, err := run.Run(ctx, run.Input{Table: t, DataSource: args[0], Rules: doc}, run.Options{
				Evaluator: ev,
				Logger:    a.log,
			})
			if err != nil {
				return err
			}
			a.reportFailures(res.Report)
			alerts := res.Report.Alerts
			if alerts == nil {
				alerts = []alert.Alert{}
			}
			return a.writeJSON(output, alerts)
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "rules JSON file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the alerts to this file instead of stdout")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old-profile.json> <new-profile.json>",
		Short: "List columns added, removed or changed between two profiles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := readProfile(args[0])
			if err != nil {
				return err
			}
			cur, err := readProfile(args[1])
			if err != nil {
				return err
			}
			changes := profile.Diff(old, cur)
			if changes == nil {
				changes = []profile.Change{}
			}
			return a.writeJSON("", changes)
		},
	}
}

func readProfile(path string) (*profile.DatasetProfile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := profile.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
