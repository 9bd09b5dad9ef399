package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"dt-server/api/baas"
	"dt-server/config"
	"dt-server/dao/redis"
	"dt-server/db"
	"dt-server/di"
	"dt-server/forecast"
	"dt-server/logging"
	"dt-server/models"
	services "dt-server/service"
	"dt-server/util"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dt-server",
	Short: "Disease trend forecasting server",
	Long: `dt-server ranks crop diseases by outbreak risk from farmer-submitted
detections and projects the next week of detection volume.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		manager, err := config.NewManagerFromFile(configFile)
		if err != nil {
			return err
		}
		if err := manager.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = manager.GetConfig()
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.NewLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic trend refresher",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, logger)
	},
}

var predictOpts predictOptions

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Compute a trend report offline from a JSON detections file",
	Long: `Reads detections from a JSON file, prints the trend report as JSON and
optionally renders the forecast chart to an HTML file.

Example:
  dt-server predict --file resources/detections_sample.json --lookback 60 --locale ne --as-of 2026-03-29`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.SetOutput(cmd.ErrOrStderr())
		return runPredict(cmd.Context(), cmd.OutOrStdout(), cfg, logger, predictOpts)
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the detections schema",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return di.Migrate(cfg, logger, args[0] == "up")
	},
}

var (
	chartReport string
	chartOut    string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the forecast chart of a saved trend report",
	Long: `Reads a trend report written by "predict" and renders its forecast chart.

Example:
  dt-server predict --as-of 2026-03-29 > report.json
  dt-server chart --report report.json --out forecast.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChart(chartReport, chartOut, logger)
	},
}

var cacheCmd = &cobra.Command{
	Use:       "cache [list|clear]",
	Short:     "List or clear the trend reports cached in Redis",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"list", "clear"},
	RunE: func(cmd *cobra.Command, args []string) error {
		redisClient := db.NewGoRedisClient(goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		defer redisClient.Close()
		if err := redisClient.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Address, err)
		}
		reports := redis.NewRedisTrendDAO(redisClient, cfg.Redis.TTL, logger)
		return runCache(cmd.Context(), cmd.OutOrStdout(), reports, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: search ., ./config, /etc/dt-server)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	predictCmd.Flags().StringVarP(&predictOpts.file, "file", "f", "", "Detections JSON file (default: store.fixture)")
	predictCmd.Flags().IntVarP(&predictOpts.lookback, "lookback", "l", 30, "Lookback window in days")
	predictCmd.Flags().StringVar(&predictOpts.locale, "locale", forecast.DefaultLocale, "Reasoning locale")
	predictCmd.Flags().StringVar(&predictOpts.asOf, "as-of", "", "Reference time, RFC3339 or YYYY-MM-DD (default: now)")
	predictCmd.Flags().StringVar(&predictOpts.chart, "chart", "", "Write the forecast chart to this HTML file")
	predictCmd.Flags().BoolVar(&predictOpts.summary, "summary", false, "Print a short summary instead of JSON")

	chartCmd.Flags().StringVarP(&chartReport, "report", "r", "", "Trend report JSON file (required)")
	chartCmd.Flags().StringVarP(&chartOut, "out", "o", "forecast.html", "HTML file to write")
	chartCmd.MarkFlagRequired("report")

	rootCmd.AddCommand(serveCmd, predictCmd, chartCmd, cacheCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	if cfg.Refresher.Enabled {
		if err := container.TrendsRefresherService.RefreshAll(ctx); err != nil {
			logger.WithError(err).Warn("Initial trend refresh failed")
		}
		container.TrendsRefresherService.StartPeriodicJob(ctx, cfg.Refresher.Interval)
		defer container.TrendsRefresherService.Stop()
	}

	return container.DiseaseTrendHttpServer.Start(ctx)
}

type predictOptions struct {
	file     string
	lookback int
	locale   string
	asOf     string
	chart    string
	summary  bool
}

func runPredict(ctx context.Context, out io.Writer, cfg *config.Config, logger *logrus.Logger, opts predictOptions) error {
	asOf, err := parseAsOf(opts.asOf)
	if err != nil {
		return err
	}
	file := opts.file
	if file == "" {
		file = cfg.Store.Fixture
	}

	source, err := baas.NewDetectionsClientMock(file)
	if err != nil {
		return err
	}
	reasoner, err := forecast.NewReasoner()
	if err != nil {
		return err
	}
	trends := services.NewTrendService(source, forecast.NewEstimator(cfg.Forecast, reasoner), reasoner, logger)

	report, err := trends.GetTrendReport(ctx, opts.lookback, opts.locale, asOf)
	if err != nil {
		return err
	}

	if opts.chart != "" {
		if err := writeChart(opts.chart, report); err != nil {
			return err
		}
		logger.WithField("path", opts.chart).Info("Wrote forecast chart")
	}

	if opts.summary {
		util.PrintTrendReportPartially(report)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeChart(path string, report *models.TrendReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := util.RenderForecastChart(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runChart(reportPath, out string, logger *logrus.Logger) error {
	report, err := util.ReadTrendReportFromJSON(reportPath)
	if err != nil {
		return err
	}
	if err := writeChart(out, report); err != nil {
		return err
	}
	logger.WithField("path", out).Info("Wrote forecast chart")
	return nil
}

func runCache(ctx context.Context, out io.Writer, reports *redis.RedisTrendDAO, action string) error {
	keys, err := reports.ListCachedReportKeys(ctx)
	if err != nil {
		return err
	}
	switch action {
	case "list":
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		fmt.Fprintf(out, "%d cached reports\n", len(keys))
		return nil
	case "clear":
		if err := reports.InvalidateReports(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "cleared %d cached reports\n", len(keys))
		return nil
	default:
		return fmt.Errorf("unknown cache action %q", action)
	}
}

func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// a bare date means the end of that UTC day
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: expected RFC3339 or YYYY-MM-DD", s)
	}
	return d.Add(24*time.Hour - time.Second), nil
}
