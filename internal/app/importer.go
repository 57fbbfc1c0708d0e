package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// QuestionSource loads questions from an admin question bank.
type QuestionSource interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionWriter stores bank questions in the question store. It returns
// domain.ErrDuplicateQuestion when the text already exists in the category.
type QuestionWriter interface {
	InsertQuestion(ctx context.Context, q domain.Question) error
}

// CategoryWriter creates categories on demand and adjusts their question count.
type CategoryWriter interface {
	EnsureCategory(ctx context.Context, id, name string, questionDelta int64) error
}

// ImportReport summarizes an import run.
type ImportReport struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// Importer copies a question bank into the question store.
type Importer struct {
	source     QuestionSource
	questions  QuestionWriter
	categories CategoryWriter
	logger     *zap.Logger
}

func NewImporter(source QuestionSource, questions QuestionWriter, categories CategoryWriter, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{source: source, questions: questions, categories: categories, logger: logger}
}

// Run imports every valid question, skipping duplicates.
func (im *Importer) Run(ctx context.Context) (ImportReport, error) {
	bank, err := im.source.LoadQuestions(ctx)
	if err != nil {
		return ImportReport{}, fmt.Errorf("load question bank: %w", err)
	}

	var report ImportReport
	added := make(map[string]int64)
	names := make(map[string]string)
	for _, q := range bank {
		if q.Type == domain.QuestionTrueFalse && len(q.Options) == 0 {
			q.Options = []string{"True", "False"}
		}
		if err := q.Validate(); err != nil {
			report.Invalid++
			im.logger.Warn("invalid question skipped", zap.String("questionId", q.ID), zap.Error(err))
			continue
		}
		if err := im.questions.InsertQuestion(ctx, q); err != nil {
			if errors.Is(err, domain.ErrDuplicateQuestion) {
				report.Skipped++
				continue
			}
			return report, fmt.Errorf("insert question %s: %w", q.ID, err)
		}
		report.Imported++
		added[q.CategoryID]++
		if names[q.CategoryID] == "" {
			names[q.CategoryID] = q.CategoryName
		}
	}

	for id, delta := range added {
		if err := im.categories.EnsureCategory(ctx, id, names[id], delta); err != nil {
			return report, fmt.Errorf("ensure category %s: %w", id, err)
		}
	}
	im.logger.Info("question bank imported",
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("invalid", report.Invalid),
	)
	return report, nil
}
