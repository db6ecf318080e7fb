package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/mailbox"
	"github.com/jackychen-2/job-application-monitor/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the mailbox and update tracked applications",
	Run: func(cmd *cobra.Command, _ []string) {
		runScan(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("schedule", "s", "", "cron expression for periodic scans, a single scan is run when unset")

	viper.BindPFlag("schedule", scanCmd.Flags().Lookup("schedule"))
}

func runScan(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-monitor", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}
	if config.Mailbox == nil || config.Mailbox.Dump == "" {
		logger.Fatal("mailbox dump path is required under mailbox.dump")
	}

	st := openStore(config, logger)
	resolver := newResolver(ctx, config, logger)
	source := mailbox.NewDumpSource(config.Mailbox.Dump)
	pipeline := scan.NewPipeline(st, resolver, source, config.Account, config.Folder, logger)
	coordinator := scan.NewCoordinator(pipeline, logger)

	schedule := viper.GetString("schedule")
	if schedule == "" {
		summary, err := coordinator.Run(ctx)
		if err != nil {
			logger.Fatal("scan failed", zap.Error(err))
		}
		logSummary(logger, summary)
		return
	}

	runScheduled(ctx, coordinator, schedule, logger)
}

// runScheduled runs scans on a cron schedule until interrupted. An overdue
// tick while a scan is still running is dropped rather than queued.
func runScheduled(ctx context.Context, coordinator *scan.Coordinator, schedule string, logger *zap.Logger) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		summary, err := coordinator.Run(ctx)
		if errors.Is(err, scan.ErrScanInProgress) {
			logger.Warn("scheduled scan skipped, previous scan still running")
			return
		}
		if err != nil {
			logger.Error("scheduled scan failed", zap.Error(err))
			return
		}
		logSummary(logger, summary)
	})
	if err != nil {
		logger.Fatal("invalid cron schedule", zap.String("schedule", schedule), zap.Error(err))
	}

	logger.Info("scheduled scanning started", zap.String("schedule", schedule))
	c.Start()

	<-ctx.Done()
	logger.Info("shutting down")
	coordinator.Cancel()
	<-c.Stop().Done()
}

func logSummary(logger *zap.Logger, summary *scan.Summary) {
	logger.Info("scan summary",
		zap.Int("fetched", summary.Fetched),
		zap.Int("processed", summary.Processed),
		zap.Int("job_related", summary.JobRelated),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Bool("cancelled", summary.Cancelled),
	)
	for _, failure := range summary.Failures {
		logger.Warn("email failed", zap.String("failure", failure))
	}
}
