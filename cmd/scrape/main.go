package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"video-scraper/internal/config"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper"
	"video-scraper/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	limit      int
	workers    int
	configPath string
	debug      bool
	timeout    time.Duration
	options    map[string]string
)

var rootCmd = &cobra.Command{
	Use:   "scrape <platform> <operation> <target>",
	Short: "scrape reads videos, broadcasts, news and works from Japanese video platforms and prints them as JSON.",
	Long: "scrape reads videos, broadcasts, news and works from Japanese video platforms and prints them as JSON.\n\n" +
		"Operations:\n  " + strings.Join(service.Operations(), "\n  ") + "\n\n" +
		"Targets taking several identifiers separate them with commas.",
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&limit, "limit", service.DefaultLimit, "Maximum number of records a listing returns.")
	flags.IntVar(&workers, "workers", 1, "Browsers used in parallel for detail pages.")
	flags.StringVar(&configPath, "config", "", "YAML configuration file.")
	flags.BoolVar(&debug, "debug", false, "Log at debug level in development format.")
	flags.DurationVar(&timeout, "timeout", 5*time.Minute, "Give up after this long.")
	flags.StringToStringVar(&options, "opt", nil, "Operation option as key=value, e.g. tab=archive or order=dl_d.")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := service.NewLogger(cfg.LogLevel, debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc := service.New(scraper.NewDeps(cfg, logger), cfg)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	start := time.Now()
	records, runErr := svc.Run(ctx, service.Request{
		Platform:  args[0],
		Operation: args[1],
		Target:    args[2],
		Limit:     limit,
		Workers:   workers,
		Options:   options,
	})
	logger.Info("done",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(runErr),
	)

	if len(records) > 0 || runErr == nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(models.ToMaps(records)); err != nil {
			return fmt.Errorf("write records: %w", err)
		}
	}
	return runErr
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
