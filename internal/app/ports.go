package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"
)

// QuestionFilter narrows sampling; an empty Difficulty means any difficulty.
type QuestionFilter struct {
	CategoryID string
	Difficulty domain.Difficulty
}

// QuestionRepository samples published questions from the question store.
type QuestionRepository interface {
	// Sample returns up to count distinct published questions chosen uniformly at random.
	Sample(ctx context.Context, filter QuestionFilter, count int) ([]domain.Question, error)
	// RandomCategory picks a category with at least one matching published question.
	RandomCategory(ctx context.Context, difficulty domain.Difficulty) (string, bool, error)
}

// CategoryRegistry is the category collaborator used for names and counters.
type CategoryRegistry interface {
	FindByID(ctx context.Context, id string) (domain.Category, error)
	IncrementAttempts(ctx context.Context, id string) error
	IncrementQuizzes(ctx context.Context, id string) error
}

// AttemptRepository persists attempts. Complete and Reset are single atomic
// conditional writes.
type AttemptRepository interface {
	Insert(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	// Complete stores the grading result only while the attempt is in progress,
	// returning domain.ErrAlreadyCompleted otherwise.
	Complete(ctx context.Context, attemptID string, questions []domain.AttemptQuestion, answers []domain.Answer, result domain.Completion) error
	// Reset restores the attempt only while its score is below maxScore,
	// returning domain.ErrRetakeNotAllowed otherwise.
	Reset(ctx context.Context, attemptID string, maxScore int, startedAt, expiresAt time.Time) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Attempt, error)
}

// BestRecord replaces the best-score fields of an entry.
type BestRecord struct {
	Score     int
	TimeMs    *int64
	AttemptID string
}

// EntryUpdate is one grading event applied to a per-user entry. The store
// increments attempts by one; Best is nil when the best fields stay unchanged.
type EntryUpdate struct {
	Key           domain.GroupKey
	UserID        string
	LastAttemptAt time.Time
	DisplayName   string
	AvatarURL     string
	CategoryName  string
	Best          *BestRecord
}

// EntryFilter selects entries; zero fields match anything.
type EntryFilter struct {
	CategoryID   string
	Difficulty   domain.Difficulty
	NumQuestions int
}

// Complete reports whether the filter names exactly one group.
func (f EntryFilter) Complete() bool {
	return f.CategoryID != "" && f.Difficulty != "" && f.NumQuestions > 0
}

// Key converts a complete filter to a group key.
func (f EntryFilter) Key() domain.GroupKey {
	return domain.GroupKey{CategoryID: f.CategoryID, Difficulty: f.Difficulty, NumQuestions: f.NumQuestions}
}

// LeaderboardRepository stores per-user entries and group statistics.
type LeaderboardRepository interface {
	FindEntry(ctx context.Context, key domain.GroupKey, userID string) (domain.LeaderboardEntry, error)
	UpsertEntry(ctx context.Context, update EntryUpdate) error
	// ComputeStats aggregates every entry of the group.
	ComputeStats(ctx context.Context, key domain.GroupKey) (domain.GroupStats, error)
	SaveStats(ctx context.Context, stats domain.GroupStats) error
	GetStats(ctx context.Context, key domain.GroupKey) (domain.GroupStats, bool, error)
	// ListEntries orders by best score desc, then best time asc with missing times last.
	ListEntries(ctx context.Context, filter EntryFilter, offset, limit int) ([]domain.LeaderboardEntry, error)
	// CountBetter counts other users' entries that beat the given score and time.
	CountBetter(ctx context.Context, key domain.GroupKey, userID string, score int, timeMs *int64) (int64, error)
	Groups(ctx context.Context) ([]domain.GroupKey, error)
}
