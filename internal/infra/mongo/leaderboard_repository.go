package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// LeaderboardRepository keeps one document per (group, user) plus one
// stats document per group.
//
// Entries carry a rankTimeMs field that mirrors bestTimeMs with missing
// times stored as MaxInt64, so a plain ascending sort puts them last.
type LeaderboardRepository struct {
	entries *mongo.Collection
	stats   *mongo.Collection
}

func NewLeaderboardRepository(db *mongo.Database) *LeaderboardRepository {
	return &LeaderboardRepository{
		entries: db.Collection(entriesCollection),
		stats:   db.Collection(groupStatsCollection),
	}
}

func (r *LeaderboardRepository) FindEntry(ctx context.Context, key domain.GroupKey, userID string) (domain.LeaderboardEntry, error) {
	filter := keyFilter(key)
	filter["userId"] = userID
	var e domain.LeaderboardEntry
	err := r.entries.FindOne(ctx, filter).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.LeaderboardEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

func (r *LeaderboardRepository) UpsertEntry(ctx context.Context, update app.EntryUpdate) error {
	filter := keyFilter(update.Key)
	filter["userId"] = update.UserID

	set := bson.M{
		"lastAttemptAt": update.LastAttemptAt,
		"displayName":   update.DisplayName,
		"avatarUrl":     update.AvatarURL,
		"categoryName":  update.CategoryName,
	}
	doc := bson.M{"$inc": bson.M{"attempts": 1}, "$set": set}
	if update.Best != nil {
		set["bestScore"] = update.Best.Score
		set["bestTimeMs"] = update.Best.TimeMs
		set["bestAttemptId"] = update.Best.AttemptID
		set["rankTimeMs"] = rankTime(update.Best.TimeMs)
	} else {
		doc["$setOnInsert"] = bson.M{"bestScore": 0, "bestTimeMs": nil, "rankTimeMs": int64(math.MaxInt64)}
	}
	if _, err := r.entries.UpdateOne(ctx, filter, doc, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

func (r *LeaderboardRepository) ComputeStats(ctx context.Context, key domain.GroupKey) (domain.GroupStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: keyFilter(key)}},
		{{Key: "$group", Value: bson.M{
			"_id":               nil,
			"participantsCount": bson.M{"$sum": 1},
			"topScore":          bson.M{"$max": "$bestScore"},
			"avgScore":          bson.M{"$avg": "$bestScore"},
			"totalAttempts":     bson.M{"$sum": "$attempts"},
			"bestTimeMs":        bson.M{"$min": "$bestTimeMs"},
		}}},
	}
	cursor, err := r.entries.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.GroupStats{}, fmt.Errorf("aggregate stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ParticipantsCount int64   `bson:"participantsCount"`
		TopScore          int     `bson:"topScore"`
		AvgScore          float64 `bson:"avgScore"`
		TotalAttempts     int64   `bson:"totalAttempts"`
		BestTimeMs        *int64  `bson:"bestTimeMs"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return domain.GroupStats{}, fmt.Errorf("decode stats: %w", err)
	}
	stats := domain.GroupStats{GroupKey: key}
	if len(rows) == 0 {
		return stats, nil
	}
	row := rows[0]
	stats.ParticipantsCount = row.ParticipantsCount
	stats.TopScore = row.TopScore
	stats.AvgScore = domain.RoundScore(row.AvgScore)
	stats.TotalAttempts = row.TotalAttempts
	stats.BestTimeMs = row.BestTimeMs
	return stats, nil
}

func (r *LeaderboardRepository) SaveStats(ctx context.Context, stats domain.GroupStats) error {
	_, err := r.stats.ReplaceOne(ctx, keyFilter(stats.GroupKey), stats, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (r *LeaderboardRepository) GetStats(ctx context.Context, key domain.GroupKey) (domain.GroupStats, bool, error) {
	var stats domain.GroupStats
	err := r.stats.FindOne(ctx, keyFilter(key)).Decode(&stats)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.GroupStats{}, false, nil
	}
	if err != nil {
		return domain.GroupStats{}, false, fmt.Errorf("find stats: %w", err)
	}
	return stats, true, nil
}

func (r *LeaderboardRepository) ListEntries(ctx context.Context, filter app.EntryFilter, offset, limit int) ([]domain.LeaderboardEntry, error) {
	match := bson.M{}
	if filter.CategoryID != "" {
		match["categoryId"] = filter.CategoryID
	}
	if filter.Difficulty != "" {
		match["difficulty"] = filter.Difficulty
	}
	if filter.NumQuestions > 0 {
		match["numQuestions"] = filter.NumQuestions
	}
	opts := options.Find().
		SetSort(bson.D{
			{Key: "bestScore", Value: -1},
			{Key: "rankTimeMs", Value: 1},
			{Key: "lastAttemptAt", Value: 1},
			{Key: "userId", Value: 1},
		}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.entries.Find(ctx, match, opts)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []domain.LeaderboardEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}

func (r *LeaderboardRepository) CountBetter(ctx context.Context, key domain.GroupKey, userID string, score int, timeMs *int64) (int64, error) {
	filter := keyFilter(key)
	filter["userId"] = bson.M{"$ne": userID}
	filter["$or"] = bson.A{
		bson.M{"bestScore": bson.M{"$gt": score}},
		bson.M{"bestScore": score, "rankTimeMs": bson.M{"$lt": rankTime(timeMs)}},
	}
	n, err := r.entries.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count better entries: %w", err)
	}
	return n, nil
}

func (r *LeaderboardRepository) Groups(ctx context.Context) ([]domain.GroupKey, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": bson.M{
			"categoryId":   "$categoryId",
			"difficulty":   "$difficulty",
			"numQuestions": "$numQuestions",
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.categoryId", Value: 1}, {Key: "_id.difficulty", Value: 1}, {Key: "_id.numQuestions", Value: 1}}}},
	}
	cursor, err := r.entries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key domain.GroupKey `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	keys := make([]domain.GroupKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}
	return keys, nil
}

func keyFilter(key domain.GroupKey) bson.M {
	return bson.M{
		"categoryId":   key.CategoryID,
		"difficulty":   key.Difficulty,
		"numQuestions": key.NumQuestions,
	}
}

func rankTime(timeMs *int64) int64 {
	if timeMs == nil {
		return math.MaxInt64
	}
	return *timeMs
}
