package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-attempt-service/internal/domain"
)

// AttemptRepository stores attempts as single documents so grading and
// retakes are one conditional UpdateOne each.
type AttemptRepository struct {
	collection *mongo.Collection
}

func NewAttemptRepository(db *mongo.Database) *AttemptRepository {
	return &AttemptRepository{collection: db.Collection(attemptsCollection)}
}

func (r *AttemptRepository) Insert(ctx context.Context, attempt domain.Attempt) error {
	if _, err := r.collection.InsertOne(ctx, attempt); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var a domain.Attempt
	err := r.collection.FindOne(ctx, bson.M{"_id": attemptID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("find attempt: %w", err)
	}
	return a, nil
}

// Complete matches only documents without a result, so of two racing
// submissions exactly one is applied.
func (r *AttemptRepository) Complete(ctx context.Context, attemptID string, questions []domain.AttemptQuestion, answers []domain.Answer, result domain.Completion) error {
	filter := bson.M{"_id": attemptID, "result": nil}
	update := bson.M{"$set": bson.M{
		"questions": questions,
		"answers":   answers,
		"result":    result,
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOr(ctx, attemptID, domain.ErrAlreadyCompleted)
	}
	return nil
}

func (r *AttemptRepository) Reset(ctx context.Context, attemptID string, maxScore int, startedAt, expiresAt time.Time) error {
	filter := bson.M{
		"_id": attemptID,
		"$or": bson.A{
			bson.M{"result": nil},
			bson.M{"result.score": bson.M{"$lt": maxScore}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"answers":   bson.A{},
			"startedAt": startedAt,
			"expiresAt": expiresAt,
		},
		"$unset": bson.M{
			"result":                      "",
			"questions.$[].selectedIndex": "",
			"questions.$[].isCorrect":     "",
		},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("reset attempt: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOr(ctx, attemptID, domain.ErrRetakeNotAllowed)
	}
	return nil
}

func (r *AttemptRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Attempt, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer cursor.Close(ctx)

	attempts := []domain.Attempt{}
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	return attempts, nil
}

// missOr distinguishes a missing attempt from a failed condition after an
// update matched nothing.
func (r *AttemptRepository) missOr(ctx context.Context, attemptID string, conflict error) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": attemptID})
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if n == 0 {
		return domain.ErrAttemptNotFound
	}
	return conflict
}
