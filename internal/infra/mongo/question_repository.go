package mongo

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// QuestionRepository samples questions with the $sample aggregation stage.
type QuestionRepository struct {
	collection *mongo.Collection
}

func NewQuestionRepository(db *mongo.Database) *QuestionRepository {
	return &QuestionRepository{collection: db.Collection(questionsCollection)}
}

type questionDocument struct {
	domain.Question `bson:",inline"`
	TextKey         string `bson:"textKey"`
}

func (r *QuestionRepository) Sample(ctx context.Context, filter app.QuestionFilter, count int) ([]domain.Question, error) {
	if count <= 0 {
		return []domain.Question{}, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: publishedFilter(filter)}},
		{{Key: "$sample", Value: bson.M{"size": count}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	defer cursor.Close(ctx)

	var questions []domain.Question
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	return questions, nil
}

func (r *QuestionRepository) RandomCategory(ctx context.Context, difficulty domain.Difficulty) (string, bool, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: publishedFilter(app.QuestionFilter{Difficulty: difficulty})}},
		{{Key: "$group", Value: bson.M{"_id": "$categoryId"}}},
		{{Key: "$sample", Value: bson.M{"size": 1}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return "", false, fmt.Errorf("pick category: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return "", false, fmt.Errorf("decode category: %w", err)
	}
	if len(groups) == 0 || groups[0].ID == "" {
		return "", false, nil
	}
	return groups[0].ID, true, nil
}

// InsertQuestion stores a question; the unique (categoryId, textKey) index rejects duplicates.
func (r *QuestionRepository) InsertQuestion(ctx context.Context, q domain.Question) error {
	doc := questionDocument{Question: q, TextKey: textKey(q.Text)}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateQuestion
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func publishedFilter(filter app.QuestionFilter) bson.M {
	match := bson.M{"status": domain.StatusPublished}
	if filter.CategoryID != "" {
		match["categoryId"] = filter.CategoryID
	}
	if filter.Difficulty != "" {
		match["difficulty"] = filter.Difficulty
	}
	return match
}

func textKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
