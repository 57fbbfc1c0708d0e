package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-attempt-service/internal/domain"
)

// CategoryRepository is the category registry collection.
type CategoryRepository struct {
	collection *mongo.Collection
}

func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{collection: db.Collection(categoriesCollection)}
}

func (r *CategoryRepository) FindByID(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (r *CategoryRepository) IncrementAttempts(ctx context.Context, id string) error {
	return r.increment(ctx, id, "totalAttempts")
}

func (r *CategoryRepository) IncrementQuizzes(ctx context.Context, id string) error {
	return r.increment(ctx, id, "totalQuizzes")
}

// EnsureCategory upserts the category and adds questionDelta to its question count.
func (r *CategoryRepository) EnsureCategory(ctx context.Context, id, name string, questionDelta int64) error {
	update := bson.M{
		"$setOnInsert": bson.M{"name": name, "totalAttempts": 0, "totalQuizzes": 0},
		"$inc":         bson.M{"questionCount": questionDelta},
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("ensure category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) increment(ctx context.Context, id, field string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return fmt.Errorf("increment %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}
