package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xtract/internal/catalog"
	"xtract/internal/rules"
	"xtract/internal/run"
)

func (a *app) catalogClient() *catalog.Client {
	return catalog.New(a.cfg.API.BaseURL(),
		catalog.WithTimeout(a.cfg.API.Timeout),
		catalog.WithLogger(a.log))
}

// authedClient returns a client carrying the token saved by login.
func (a *app) authedClient() (*catalog.Client, error) {
	token, err := catalog.LoadToken(a.cfg.Settings.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w (run xtract login first)", err)
	}
	c := a.catalogClient()
	c.SetToken(token)
	return c, nil
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to the catalog and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred := a.cfg.Credentials
			if cred.Username == "" {
				return errors.New("credentials.username is not configured")
			}
			token, err := a.catalogClient().Login(cmd.Context(), cred.Username, cred.Password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := catalog.SaveToken(a.cfg.Settings.TokenFile, token); err != nil {
				return err
			}
			a.log.Info("logged in", zap.String("user", cred.Username), zap.String("token_file", a.cfg.Settings.TokenFile))
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	var (
		id  string
		all bool
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch assets from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all && id == "" {
				return errors.New("one of --id or --all is required")
			}
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			var assets catalog.Assets
			if all {
				assets, err = c.ListAssets(cmd.Context())
			} else {
				assets, err = c.GetAsset(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return a.printAssets(assets)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "asset id (data hash)")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every asset")
	cmd.MarkFlagsMutuallyExclusive("id", "all")
	return cmd
}

// printAssets prints one block per data hash, in hash order.
func (a *app) printAssets(assets catalog.Assets) error {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var v any
		if err := json.Unmarshal(assets[k], &v); err != nil {
			return fmt.Errorf("asset %s: %w", k, err)
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Data hash: [%s]\n%s\n\n", k, b)
	}
	return nil
}

func (a *app) publishCmd() *cobra.Command {
	var (
		in        inputFlags
		rulesPath string
		noBar     bool
	)
	cmd := &cobra.Command{
		Use:   "publish <input>",
		Short: "Profile a dataset, evaluate rules and publish both to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.authedClient()
			if err != nil {
				return err
			}

			var doc *rules.Document
			opts := run.Options{Profiler: a.profiler(0, !noBar), Logger: a.log}
			if rulesPath != "" {
				if doc, err = a.readRules(rulesPath); err != nil {
					return err
				}
				if opts.Evaluator, err = a.evaluator(ctx); err != nil {
					return err
				}
			}

			t, err := a.load(ctx, args[0], in)
			if err != nil {
				return err
			}
			res, err := run.Run(ctx, run.Input{Table: t, DataSource: args[0], Rules: doc}, opts)
			if err != nil {
				return err
			}

			if err := c.PublishProfile(ctx, res.Profile); err != nil {
				return fmt.Errorf("publish profile: %w", err)
			}
			a.log.Info("profile published", zap.String("data_id", res.Profile.Profile.DataID))
			if res.Report != nil {
				a.reportFailures(res.Report)
				if err := c.PublishAlerts(ctx, res.Profile.Profile.DataID, res.Report.Alerts); err != nil {
					return fmt.Errorf("publish alerts: %w", err)
				}
				a.log.Info("alerts published", zap.Int("count", len(res.Report.Alerts)))
			}
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "rules JSON file to evaluate and publish")
	cmd.Flags().BoolVar(&noBar, "no-progress", false, "do not draw progress bars")
	return cmd
}
