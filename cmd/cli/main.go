package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lgsf-dashboard/logbooks/internal/aggregator"
	"github.com/lgsf-dashboard/logbooks/internal/collector"
	"github.com/lgsf-dashboard/logbooks/internal/config"
	"github.com/lgsf-dashboard/logbooks/internal/logbook"
	"github.com/lgsf-dashboard/logbooks/internal/logging"
	"github.com/lgsf-dashboard/logbooks/internal/output"
	"github.com/lgsf-dashboard/logbooks/internal/storage"
	"github.com/lgsf-dashboard/logbooks/internal/storage/postgres"
	"github.com/lgsf-dashboard/logbooks/internal/storage/sqlite"
)

var (
	cfgFile    string
	outputJSON bool
	verbose    bool
	remote     bool
	limit      int

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "logbooks",
	Short: "Scraper run logbook aggregator",
	Long: `A CLI tool for aggregating council scraper run history into logbooks.

Runs are read from S3 run reports or a repository of per-council logbook
files, kept within a retention window, and written out as logbooks.json and
failing.json for the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [council...]",
	Short: "Build logbooks from the configured source",
	Long: `Fetch every council's runs from the configured source, build their
logbooks and write logbooks.json and failing.json. With council ids given,
only those councils are aggregated.`,
	RunE: runAggregate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file overlaid on the environment (default is .env only)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, cmd := range []*cobra.Command{failingCmd, logbookCmd, historyCmd} {
		cmd.Flags().BoolVar(&remote, "remote", false, "read from the API server instead of local files")
	}
	historyCmd.Flags().IntVar(&limit, "limit", storage.DefaultListLimit, "number of passes to list")

	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(failingCmd)
	rootCmd.AddCommand(logbookCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(servicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	case "sqlite":
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	default:
		return nil, nil
	}
}

func getSource(ctx context.Context, cfg *config.Config) (collector.Source, error) {
	switch cfg.Source {
	case "github":
		return collector.NewGitHubSource(collector.GitHubConfig{
			Token: cfg.GitHubToken,
			Owner: cfg.RepoOwner,
			Repo:  cfg.RepoName,
			Path:  cfg.RepoPath,
			Ref:   cfg.RepoRef,
		}, logger)
	default:
		src, err := collector.NewS3Source(ctx, collector.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Prefix:          cfg.S3ReportsPrefix,
			ReportCount:     cfg.S3ReportCount,
		}, logger)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Loading the %d most recent run reports from s3://%s/%s...\n", cfg.S3ReportCount, cfg.S3Bucket, cfg.S3ReportsPrefix)
		if err := src.Load(ctx); err != nil {
			return nil, err
		}
		return src, nil
	}
}

func runAggregate(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	source, err := getSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s source: %w", cfg.Source, err)
	}

	councilIDs := append([]string(nil), args...)
	if len(councilIDs) == 0 {
		fmt.Println("Listing councils...")
		councilIDs, err = source.ListCouncils(ctx)
		if err != nil {
			return fmt.Errorf("failed to list councils: %w", err)
		}
	}
	sort.Strings(councilIDs)
	fmt.Printf("Found %d councils\n", len(councilIDs))

	window, err := logbook.NewWindow(cfg.Window, cfg.WindowSize, nil)
	if err != nil {
		return err
	}
	builder := logbook.NewBuilder(window, source,
		logbook.WithParsePolicy(logbook.ParsePolicy(cfg.ParsePolicy)),
		logbook.WithLogger(logger))
	expiry := collector.NewExpiryChecker(cfg.ExpiryAPIURL, cfg.ExpiryRPS, logger)
	driver := aggregator.NewDriver(source, expiry, builder,
		aggregator.WithConcurrency(cfg.FetchConcurrency),
		aggregator.WithLogger(logger))

	fmt.Printf("Aggregating with %s window of %d...\n", window.Name(), cfg.WindowSize)
	res, err := driver.Run(ctx, councilIDs)
	if err != nil {
		return fmt.Errorf("aggregation interrupted: %w", err)
	}

	if err := output.WriteAll(cfg.OutputDir, res.LogBooks, res.Failing); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("Wrote %d logbooks and %d failing councils to %s\n", len(res.LogBooks), len(res.Failing), cfg.OutputDir)

	if store != nil {
		agg := driver.Aggregation(res, source.Name())
		if err := store.SaveAggregation(ctx, agg); err != nil {
			return fmt.Errorf("failed to archive aggregation: %w", err)
		}
		fmt.Printf("Archived aggregation %s\n", agg.ID)
	}

	if len(res.Expired) > 0 {
		fmt.Printf("Skipped %d expired councils\n", len(res.Expired))
	}
	if len(res.Skipped) > 0 {
		skipped := 0
		for _, runs := range res.Skipped {
			skipped += len(runs)
		}
		fmt.Printf("Skipped %d malformed runs across %d councils\n", skipped, len(res.Skipped))
	}
	if len(res.Failures) > 0 {
		fmt.Printf("Warning: %d councils failed:\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Printf("  %s: %v\n", f.CouncilID, f.Err)
		}
	}

	if attempted := len(councilIDs) - len(res.Expired); attempted > 0 && len(res.Failures) == attempted {
		return fmt.Errorf("all %d councils failed", attempted)
	}
	return nil
}
