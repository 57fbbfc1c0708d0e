package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
)

// NewReconcileCmd recomputes the stats of every leaderboard group.
func NewReconcileCmd(configPath *string) *cobra.Command {
	var (
		schedule string
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute leaderboard group statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			b, err := openBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.close()

			leaderboard := app.NewLeaderboard(b.leaderboard, nil, logger, leaderboardOptions(cfg))
			if schedule == "" {
				_, err := leaderboard.Reconcile(ctx, parallel)
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := cron.New()
			if _, err := c.AddFunc(schedule, func() {
				if _, err := leaderboard.Reconcile(ctx, parallel); err != nil {
					logger.Error("scheduled reconcile failed", zap.Error(err))
				}
			}); err != nil {
				return err
			}
			logger.Info("reconcile scheduled", zap.String("schedule", schedule))
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec to run repeatedly, e.g. \"@every 5m\"")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "groups recomputed concurrently")
	return cmd
}
