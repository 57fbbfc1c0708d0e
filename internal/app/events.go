package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// GradedEvent is published once an attempt's grading has been committed.
type GradedEvent struct {
	Attempt  domain.Attempt  `json:"attempt"`
	Identity domain.Identity `json:"-"`
	GradedAt time.Time       `json:"gradedAt"`
}

// Projector derives state from a committed grading. Failures never reach the submitter.
type Projector interface {
	Name() string
	Project(ctx context.Context, event GradedEvent) error
}

// publish runs every projector in its own error boundary on a context that
// outlives the request.
func (s *AttemptService) publish(ctx context.Context, event GradedEvent) {
	base := context.WithoutCancel(ctx)
	for _, p := range s.projectors {
		s.project(base, p, event)
	}
}

func (s *AttemptService) project(base context.Context, p Projector, event GradedEvent) {
	ctx, cancel := context.WithTimeout(base, s.opts.ProjectionTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("projector panicked",
				zap.String("projector", p.Name()),
				zap.String("attemptId", event.Attempt.ID),
				zap.Any("panic", r),
			)
		}
	}()
	if err := p.Project(ctx, event); err != nil {
		s.logger.Error("projection failed",
			zap.String("projector", p.Name()),
			zap.String("attemptId", event.Attempt.ID),
			zap.Error(err),
		)
	}
}

// CategoryCounter bumps the category's completed-quiz counter.
type CategoryCounter struct {
	categories CategoryRegistry
}

func NewCategoryCounter(categories CategoryRegistry) *CategoryCounter {
	return &CategoryCounter{categories: categories}
}

func (c *CategoryCounter) Name() string { return "category-counter" }

func (c *CategoryCounter) Project(ctx context.Context, event GradedEvent) error {
	if event.Attempt.CategoryID == "" {
		return nil
	}
	if err := c.categories.IncrementQuizzes(ctx, event.Attempt.CategoryID); err != nil {
		return fmt.Errorf("increment quizzes: %w", err)
	}
	return nil
}
