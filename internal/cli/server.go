package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	infranats "quiz-attempt-service/internal/infra/nats"
	infraredis "quiz-attempt-service/internal/infra/redis"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (JWT_SECRET) is required")
	}
	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()
	if b.inMemory && cfg.Quiz.SeedSample {
		if err := b.seed(ctx, logger); err != nil {
			return err
		}
	}

	hub := app.NewHub()
	g, ctx := errgroup.WithContext(ctx)

	var updates app.Broadcaster = hub
	if b.redis != nil {
		relay := infraredis.NewUpdateRelay(b.redis, logger)
		updates = relay
		g.Go(func() error { return relay.Run(ctx, hub) })
	}

	leaderboard := app.NewLeaderboard(b.leaderboard, updates, logger, leaderboardOptions(cfg))
	projectors := []app.Projector{leaderboard, app.NewCategoryCounter(b.registry)}
	if cfg.NATS.URL != "" {
		nc, err := infranats.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Drain()
		projectors = append(projectors, infranats.NewGradedPublisher(nc))
	}
	attempts := app.NewAttemptService(b.questions, b.registry, b.attempts, logger, attemptOptions(cfg), projectors...)

	handler := transport.NewHandler(attempts, leaderboard, hub, logger)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(handler, transport.NewAuthenticator(cfg.Auth.JWTSecret), cfg.CORS.AllowedOrigins),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g.Go(func() error {
		logger.Info("starting quiz attempt service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
