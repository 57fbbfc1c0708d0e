package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
)

// StartRequest is the caller's quiz configuration.
type StartRequest struct {
	CategoryID   string `json:"categoryId"`
	NumQuestions int    `json:"numQuestions"`
	Strategy     string `json:"strategy"`
	Difficulty   string `json:"difficulty"`
}

type band struct {
	difficulty domain.Difficulty
	count      int
}

// planBands splits n into per-difficulty sampling requests.
func planBands(strategy domain.Strategy, difficulty domain.Difficulty, n int) []band {
	switch strategy {
	case domain.StrategyProgressive:
		easy := ceilDiv(n, 3)
		medium := ceilDiv(n, 3)
		hard := n - easy - medium
		if hard < 0 {
			hard = 0
		}
		bands := make([]band, 0, 3)
		for _, b := range []band{
			{difficulty: domain.DifficultyEasy, count: easy},
			{difficulty: domain.DifficultyMedium, count: medium},
			{difficulty: domain.DifficultyHard, count: hard},
		} {
			if b.count > 0 {
				bands = append(bands, b)
			}
		}
		return bands
	case domain.StrategyRandom:
		return []band{{count: n}}
	default:
		return []band{{difficulty: difficulty, count: n}}
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Start builds and persists a new attempt with a snapshot of the selected questions.
func (s *AttemptService) Start(ctx context.Context, who domain.Identity, req StartRequest) (domain.Attempt, error) {
	if who.UserID == "" {
		return domain.Attempt{}, domain.ErrUnauthorized
	}
	strategy, ok := domain.ParseStrategy(req.Strategy)
	if !ok {
		return domain.Attempt{}, domain.Invalid("unsupported strategy " + req.Strategy)
	}
	if req.NumQuestions < 1 || req.NumQuestions > s.opts.MaxQuestions {
		return domain.Attempt{}, domain.Invalid(fmt.Sprintf("numQuestions must be between 1 and %d", s.opts.MaxQuestions))
	}

	var difficulty domain.Difficulty
	if strategy == domain.StrategyFixed {
		d, ok := domain.ParseDifficulty(req.Difficulty)
		if !ok {
			d = domain.DifficultyMedium
		}
		difficulty = d
	}

	categoryID := strings.TrimSpace(req.CategoryID)
	pinned := categoryID != ""
	if !pinned {
		id, found, err := s.questions.RandomCategory(ctx, difficulty)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("pick category: %w", err)
		}
		if !found {
			return domain.Attempt{}, domain.ErrNoQuestions
		}
		categoryID = id
	}

	var categoryName string
	category, err := s.categories.FindByID(ctx, categoryID)
	switch {
	case err == nil:
		categoryName = category.Name
	case errors.Is(err, domain.ErrCategoryNotFound) && pinned:
		return domain.Attempt{}, err
	case errors.Is(err, domain.ErrCategoryNotFound):
	default:
		return domain.Attempt{}, fmt.Errorf("find category: %w", err)
	}

	picked, err := s.pick(ctx, categoryID, planBands(strategy, difficulty, req.NumQuestions), req.NumQuestions)
	if err != nil {
		return domain.Attempt{}, err
	}
	if len(picked) == 0 {
		return domain.Attempt{}, domain.ErrNoQuestions
	}
	if categoryName == "" {
		categoryName = picked[0].CategoryName
	}

	snapshot := make([]domain.AttemptQuestion, len(picked))
	for i, q := range picked {
		snapshot[i] = domain.SnapshotQuestion(q)
	}

	now := s.now()
	attempt := domain.Attempt{
		ID:             s.newID(),
		UserID:         who.UserID,
		CategoryID:     categoryID,
		CategoryName:   categoryName,
		Strategy:       strategy,
		Difficulty:     difficulty,
		RequestedCount: req.NumQuestions,
		NumQuestions:   len(snapshot),
		Questions:      snapshot,
		Answers:        []domain.Answer{},
		StartedAt:      now,
		ExpiresAt:      now.Add(s.opts.AttemptTTL),
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}

	if err := s.categories.IncrementAttempts(ctx, categoryID); err != nil {
		s.logger.Warn("increment category attempts failed", zap.String("categoryId", categoryID), zap.Error(err))
	}
	s.logger.Info("attempt started",
		zap.String("attemptId", attempt.ID),
		zap.String("userId", who.UserID),
		zap.String("categoryId", categoryID),
		zap.String("strategy", string(strategy)),
		zap.Int("requested", req.NumQuestions),
		zap.Int("selected", attempt.NumQuestions),
	)
	return attempt.Clone(), nil
}

// pick samples every band, shuffles multi-band results, drops duplicate ids
// without resampling and truncates to n.
func (s *AttemptService) pick(ctx context.Context, categoryID string, bands []band, n int) ([]domain.Question, error) {
	var all []domain.Question
	for _, b := range bands {
		qs, err := s.questions.Sample(ctx, QuestionFilter{CategoryID: categoryID, Difficulty: b.difficulty}, b.count)
		if err != nil {
			return nil, fmt.Errorf("sample %s questions: %w", b.difficulty, err)
		}
		all = append(all, qs...)
	}
	if len(bands) > 1 {
		s.shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	}

	seen := make(map[string]struct{}, len(all))
	out := make([]domain.Question, 0, n)
	for _, q := range all {
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
		if len(out) == n {
			break
		}
	}
	return out, nil
}
