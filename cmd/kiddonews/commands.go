package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"KiddoNews/internal/app"
	"KiddoNews/internal/config"
	"KiddoNews/internal/infrastructure/storage"
	"KiddoNews/internal/logging"
)

type cli struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "kiddonews",
		Short: "Hebrew news ingestion for children",
		Long: `kiddonews crawls Israeli news sites, stores the extracted articles and moves
them through automatic summarization and editorial review.

  kiddonews crawl      # run one crawl now
  kiddonews filter     # summarize every pre_filtered article
  kiddonews serve      # scheduled crawl plus the admin API
  kiddonews migrate    # apply database migrations`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to the YAML config (default $KIDDONEWS_CONFIG)")

	root.AddCommand(
		c.crawlCmd(),
		c.filterCmd(),
		c.serveCmd(),
		c.migrateCmd(),
	)
	return root
}

func (c *cli) init() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

func (c *cli) crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawl all listings once and print the run report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				report, err := a.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func (c *cli) filterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter",
		Short: "Summarize every pre_filtered article",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				report, err := a.Filter(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled crawl and the admin API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Database.InMemory() {
				c.logger.Info("in-memory store, nothing to migrate")
				return nil
			}
			db, err := storage.Open(c.cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(db); err != nil {
				return err
			}
			c.logger.Info("migrations applied")
			return nil
		},
	}
}

func (c *cli) withApp(ctx context.Context, fn func(context.Context, *app.Application) error) error {
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
