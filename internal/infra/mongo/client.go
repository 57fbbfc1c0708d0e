package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	questionsCollection   = "questions"
	categoriesCollection  = "categories"
	attemptsCollection    = "attempts"
	entriesCollection     = "leaderboard_entries"
	groupStatsCollection  = "leaderboard_stats"
	defaultConnectTimeout = 10 * time.Second
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string, logger *zap.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to mongodb")
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		questionsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "categoryId", Value: 1}, {Key: "difficulty", Value: 1}}},
			{Keys: bson.D{{Key: "categoryId", Value: 1}, {Key: "textKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		attemptsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startedAt", Value: -1}}},
		},
		entriesCollection: {
			{Keys: groupKeys(bson.E{Key: "userId", Value: 1}), Options: options.Index().SetUnique(true)},
			{Keys: groupKeys(bson.E{Key: "bestScore", Value: -1}, bson.E{Key: "rankTimeMs", Value: 1})},
		},
		groupStatsCollection: {
			{Keys: groupKeys(), Options: options.Index().SetUnique(true)},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func groupKeys(extra ...bson.E) bson.D {
	keys := bson.D{{Key: "categoryId", Value: 1}, {Key: "difficulty", Value: 1}, {Key: "numQuestions", Value: 1}}
	return append(keys, extra...)
}
