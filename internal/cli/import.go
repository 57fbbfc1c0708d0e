package cli

import (
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/postgres"
)

var errInMemoryImport = errors.New("mongo uri not configured: import needs persistent storage")

// checkImportTarget fails before any connection is made when the import
// would have nowhere to read from or nowhere durable to write to.
func checkImportTarget(cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return errors.New("postgres url not configured")
	}
	if cfg.Mongo.URI == "" {
		return errInMemoryImport
	}
	return nil
}

// NewImportCmd copies the Postgres question bank into the question store.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import questions from the Postgres question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := checkImportTarget(cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			b, err := openBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.close()
			if b.inMemory {
				return errInMemoryImport
			}

			report, err := app.NewImporter(postgres.NewQuestionBank(pool), b.questions, b.categories, logger).Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("import finished",
				zap.Int("imported", report.Imported),
				zap.Int("skipped", report.Skipped),
				zap.Int("invalid", report.Invalid),
			)
			return nil
		},
	}
}
