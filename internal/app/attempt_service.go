package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

const (
	defaultAttemptTTL        = time.Hour
	defaultMaxQuestions      = 50
	defaultProjectionTimeout = 5 * time.Second
)

// Options tunes the attempt lifecycle.
type Options struct {
	AttemptTTL        time.Duration
	MaxQuestions      int
	EnforceExpiry     bool
	ExpiryGrace       time.Duration
	ProjectionTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.AttemptTTL <= 0 {
		o.AttemptTTL = defaultAttemptTTL
	}
	if o.MaxQuestions <= 0 {
		o.MaxQuestions = defaultMaxQuestions
	}
	if o.ExpiryGrace < 0 {
		o.ExpiryGrace = 0
	}
	if o.ProjectionTimeout <= 0 {
		o.ProjectionTimeout = defaultProjectionTimeout
	}
	return o
}

// AttemptService contains the attempt use cases: start, fetch, submit, retake.
type AttemptService struct {
	questions  QuestionRepository
	categories CategoryRegistry
	attempts   AttemptRepository
	projectors []Projector
	opts       Options
	logger     *zap.Logger

	now     func() time.Time
	newID   func() string
	shuffle func(n int, swap func(i, j int))
}

func NewAttemptService(questions QuestionRepository, categories CategoryRegistry, attempts AttemptRepository, logger *zap.Logger, opts Options, projectors ...Projector) *AttemptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptService{
		questions:  questions,
		categories: categories,
		attempts:   attempts,
		projectors: projectors,
		opts:       opts.withDefaults(),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		shuffle:    rand.Shuffle,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// Get returns the caller's attempt, hiding correct answers until it is completed.
func (s *AttemptService) Get(ctx context.Context, who domain.Identity, attemptID string) (domain.AttemptView, error) {
	attempt, err := s.owned(ctx, who, attemptID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	return attempt.View(s.now()), nil
}

// History lists the caller's attempts, newest first.
func (s *AttemptService) History(ctx context.Context, who domain.Identity, page, limit int) ([]domain.AttemptView, error) {
	if who.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	attempts, err := s.attempts.ListByUser(ctx, who.UserID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	now := s.now()
	views := make([]domain.AttemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, a.View(now))
	}
	return views, nil
}

// Submit grades the attempt exactly once and then projects the result.
func (s *AttemptService) Submit(ctx context.Context, who domain.Identity, attemptID string, answers []domain.Answer) (domain.AttemptView, error) {
	attempt, err := s.owned(ctx, who, attemptID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if attempt.Completed() {
		return domain.AttemptView{}, domain.ErrAlreadyCompleted
	}

	now := s.now()
	if s.opts.EnforceExpiry && now.After(attempt.ExpiresAt.Add(s.opts.ExpiryGrace)) {
		return domain.AttemptView{}, domain.ErrAttemptExpired
	}
	if err := ValidateAnswers(attempt.Questions, answers); err != nil {
		return domain.AttemptView{}, err
	}

	graded, score := Grade(attempt.Questions, answers)
	result := domain.Completion{CompletedAt: now, Score: score}
	submitted := copyAnswers(answers)

	if err := s.attempts.Complete(ctx, attempt.ID, graded, submitted, result); err != nil {
		if errors.Is(err, domain.ErrAlreadyCompleted) {
			return domain.AttemptView{}, err
		}
		return domain.AttemptView{}, fmt.Errorf("complete attempt: %w", err)
	}

	attempt.Questions = graded
	attempt.Answers = submitted
	attempt.Result = &result
	s.logger.Info("attempt graded",
		zap.String("attemptId", attempt.ID),
		zap.String("userId", attempt.UserID),
		zap.Int("score", score),
		zap.Int("maxScore", attempt.MaxScore()),
	)

	s.publish(ctx, GradedEvent{Attempt: attempt.Clone(), Identity: who, GradedAt: now})
	return attempt.View(now), nil
}

// Retake resets a non-perfect attempt to its pre-answered state.
func (s *AttemptService) Retake(ctx context.Context, who domain.Identity, attemptID string) (domain.AttemptView, error) {
	attempt, err := s.owned(ctx, who, attemptID)
	if err != nil {
		return domain.AttemptView{}, err
	}
	if !attempt.CanRetake() {
		return domain.AttemptView{}, domain.ErrRetakeNotAllowed
	}

	now := s.now()
	reset := attempt.Reset(now, s.opts.AttemptTTL)
	if err := s.attempts.Reset(ctx, attempt.ID, attempt.MaxScore(), reset.StartedAt, reset.ExpiresAt); err != nil {
		if errors.Is(err, domain.ErrRetakeNotAllowed) {
			return domain.AttemptView{}, err
		}
		return domain.AttemptView{}, fmt.Errorf("reset attempt: %w", err)
	}
	s.logger.Info("attempt reset for retake", zap.String("attemptId", attempt.ID), zap.String("userId", attempt.UserID))
	return reset.View(now), nil
}

func (s *AttemptService) owned(ctx context.Context, who domain.Identity, attemptID string) (domain.Attempt, error) {
	if who.UserID == "" {
		return domain.Attempt{}, domain.ErrUnauthorized
	}
	if attemptID == "" {
		return domain.Attempt{}, domain.Invalid("attempt id is required")
	}
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, domain.ErrAttemptNotFound) {
			return domain.Attempt{}, err
		}
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != who.UserID {
		return domain.Attempt{}, domain.ErrForbidden
	}
	return attempt, nil
}

func copyAnswers(answers []domain.Answer) []domain.Answer {
	out := make([]domain.Answer, 0, len(answers))
	for _, a := range answers {
		ans := domain.Answer{QID: a.QID}
		if a.SelectedIndex != nil {
			v := *a.SelectedIndex
			ans.SelectedIndex = &v
		}
		out = append(out, ans)
	}
	return out
}
