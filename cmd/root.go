// Package cmd defines and implements the CLI commands for the ngacrawl executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/app"
	"github.com/JakeFAU/nga-crawler/internal/boardindex"
	"github.com/JakeFAU/nga-crawler/internal/config"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/index"
	"github.com/JakeFAU/nga-crawler/internal/logging"
	"github.com/JakeFAU/nga-crawler/internal/progress"
	"github.com/JakeFAU/nga-crawler/internal/query"
	"github.com/JakeFAU/nga-crawler/internal/worker"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application services commands use.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Clock() crawler.Clock
	Threads() *crawler.ThreadCrawler
	Topics() *crawler.TopicLister
	Builder() *index.Builder
	Store() *boardindex.Store
	Engine() *query.Engine
	NewWorker(queue crawler.Queue, jobs crawler.JobStore, events progress.Emitter, logger *zap.Logger) *worker.Worker
}

// newApp is the application factory. Tests replace it to adjust the
// configuration before services are built.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "ngacrawl",
		Short: "Crawler and board index for the NGA forum.",
		Long: `ngacrawl reads threads and topic listings from the NGA forum, builds a
searchable index of its boards and serves all of it over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
				Stderr:      true,
			})
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
				_ = appInstance.Logger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newTopicsCmd())
	cmd.AddCommand(newIndexCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
