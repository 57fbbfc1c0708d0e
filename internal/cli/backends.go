package cli

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/memory"
	inframongo "quiz-attempt-service/internal/infra/mongo"
	infraredis "quiz-attempt-service/internal/infra/redis"
)

type questionStore interface {
	app.QuestionRepository
	app.QuestionWriter
}

type categoryStore interface {
	app.CategoryRegistry
	app.CategoryWriter
}

// backends are the storage adapters selected by configuration: MongoDB when
// a URI is set, otherwise process memory.
type backends struct {
	questions   questionStore
	categories  categoryStore
	registry    app.CategoryRegistry
	attempts    app.AttemptRepository
	leaderboard app.LeaderboardRepository
	redis       *goredis.Client
	inMemory    bool
	closers     []func()
}

func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}
	if cfg.Mongo.URI != "" {
		client, err := inframongo.Connect(ctx, cfg.Mongo.URI, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })
		db := client.Database(cfg.Mongo.Database)
		if err := inframongo.EnsureIndexes(ctx, db); err != nil {
			b.close()
			return nil, err
		}
		b.questions = inframongo.NewQuestionRepository(db)
		b.categories = inframongo.NewCategoryRepository(db)
		b.attempts = inframongo.NewAttemptRepository(db)
		b.leaderboard = inframongo.NewLeaderboardRepository(db)
	} else {
		logger.Warn("mongo uri not configured, using in-memory storage")
		b.inMemory = true
		b.questions = memory.NewQuestionStore()
		b.categories = memory.NewCategoryStore()
		b.attempts = memory.NewAttemptStore()
		b.leaderboard = memory.NewLeaderboardStore()
	}

	cacheTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	b.registry = b.categories
	if cfg.Redis.Addr != "" {
		client, err := infraredis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			b.close()
			return nil, err
		}
		b.redis = client
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.registry = infraredis.NewCategoryCache(client, b.categories, cacheTTL, logger)
	} else if !b.inMemory {
		b.registry = memory.NewCategoryCache(b.categories, cacheTTL)
	}
	return b, nil
}

// seed imports the built-in sample bank; only used for in-memory runs.
func (b *backends) seed(ctx context.Context, logger *zap.Logger) error {
	importer := app.NewImporter(memory.NewStaticQuestionBank(sampleQuestions()), b.questions, b.categories, logger)
	if _, err := importer.Run(ctx); err != nil {
		return fmt.Errorf("seed sample questions: %w", err)
	}
	return nil
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func attemptOptions(cfg config.Config) app.Options {
	return app.Options{
		AttemptTTL:        config.TTLDuration(cfg.Quiz.AttemptTTL, time.Hour),
		MaxQuestions:      cfg.Quiz.MaxQuestions,
		EnforceExpiry:     cfg.Quiz.EnforceExpiry,
		ExpiryGrace:       config.TTLDuration(cfg.Quiz.ExpiryGrace, 30*time.Second),
		ProjectionTimeout: config.TTLDuration(cfg.Quiz.ProjectionTimeout, 5*time.Second),
	}
}

func leaderboardOptions(cfg config.Config) app.LeaderboardOptions {
	return app.LeaderboardOptions{
		Cap:             cfg.Quiz.LeaderboardCap,
		DefaultPageSize: cfg.Quiz.DefaultPageSize,
		MaxPageSize:     cfg.Quiz.MaxPageSize,
	}
}
