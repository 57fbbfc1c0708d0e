package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-attempt-service/internal/domain"
)

const (
	defaultLeaderboardCap = 20
	defaultPageSize       = 20
	defaultMaxPageSize    = 100
)

// LeaderboardOptions tunes grouping and paging.
type LeaderboardOptions struct {
	// Cap bounds the question-count component of the group key.
	Cap             int
	DefaultPageSize int
	MaxPageSize     int
}

// Leaderboard maintains per-group standings from graded attempts.
type Leaderboard struct {
	repo    LeaderboardRepository
	updates Broadcaster
	opts    LeaderboardOptions
	logger  *zap.Logger
	now     func() time.Time
}

func NewLeaderboard(repo LeaderboardRepository, updates Broadcaster, logger *zap.Logger, opts LeaderboardOptions) *Leaderboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Cap <= 0 {
		opts.Cap = defaultLeaderboardCap
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = defaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = defaultMaxPageSize
	}
	return &Leaderboard{repo: repo, updates: updates, opts: opts, logger: logger, now: time.Now}
}

// WithClock is test-only for deterministic timestamps.
func (l *Leaderboard) WithClock(now func() time.Time) *Leaderboard {
	l.now = now
	return l
}

// GroupKeyFor derives the leaderboard group of an attempt.
func GroupKeyFor(a domain.Attempt, limit int) domain.GroupKey {
	difficulty := a.Difficulty
	if a.Strategy != domain.StrategyFixed || difficulty == "" {
		difficulty = domain.DifficultyAny
	}
	n := a.RequestedCount
	if n <= 0 {
		n = a.NumQuestions
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return domain.GroupKey{CategoryID: a.CategoryID, Difficulty: difficulty, NumQuestions: n}
}

// DecideBest applies the best-score rules for one grading event. It returns
// nil when the existing best fields must stay as they are.
func DecideBest(existing *domain.LeaderboardEntry, score int, timeMs *int64, attemptID string) *BestRecord {
	record := &BestRecord{Score: score, TimeMs: timeMs, AttemptID: attemptID}
	if existing == nil || score > existing.BestScore {
		return record
	}
	if score == existing.BestScore && timeMs != nil && (existing.BestTimeMs == nil || *timeMs < *existing.BestTimeMs) {
		return record
	}
	return nil
}

// Name identifies the leaderboard as a grading projector.
func (l *Leaderboard) Name() string { return "leaderboard" }

// Project records a graded attempt and notifies live subscribers.
func (l *Leaderboard) Project(ctx context.Context, event GradedEvent) error {
	_, stats, err := l.Record(ctx, event.Attempt, event.Identity)
	if err != nil {
		return err
	}
	if l.updates != nil {
		l.updates.Publish(domain.GroupUpdate{Key: stats.GroupKey, Stats: stats, UpdatedAt: stats.UpdatedAt})
	}
	return nil
}

// Record upserts the user's entry for the attempt's group and recomputes the group stats.
func (l *Leaderboard) Record(ctx context.Context, a domain.Attempt, who domain.Identity) (domain.LeaderboardEntry, domain.GroupStats, error) {
	if a.Result == nil {
		return domain.LeaderboardEntry{}, domain.GroupStats{}, domain.Invalid("attempt is not completed")
	}
	key := GroupKeyFor(a, l.opts.Cap)
	timeMs := a.ElapsedMs()

	var existing *domain.LeaderboardEntry
	entry, err := l.repo.FindEntry(ctx, key, a.UserID)
	switch {
	case err == nil:
		existing = &entry
	case errors.Is(err, domain.ErrEntryNotFound):
	default:
		return domain.LeaderboardEntry{}, domain.GroupStats{}, fmt.Errorf("find entry: %w", err)
	}

	update := EntryUpdate{
		Key:           key,
		UserID:        a.UserID,
		LastAttemptAt: a.Result.CompletedAt,
		DisplayName:   who.DisplayName,
		AvatarURL:     who.AvatarURL,
		CategoryName:  a.CategoryName,
		Best:          DecideBest(existing, a.Result.Score, timeMs, a.ID),
	}
	if err := l.repo.UpsertEntry(ctx, update); err != nil {
		return domain.LeaderboardEntry{}, domain.GroupStats{}, fmt.Errorf("upsert entry: %w", err)
	}

	stats, err := l.Recompute(ctx, key)
	if err != nil {
		return domain.LeaderboardEntry{}, domain.GroupStats{}, err
	}
	entry, err = l.repo.FindEntry(ctx, key, a.UserID)
	if err != nil {
		return domain.LeaderboardEntry{}, domain.GroupStats{}, fmt.Errorf("reload entry: %w", err)
	}
	l.logger.Debug("leaderboard updated",
		zap.String("group", key.String()),
		zap.String("userId", a.UserID),
		zap.Int("bestScore", entry.BestScore),
		zap.Int64("attempts", entry.Attempts),
	)
	return entry, stats, nil
}

// Recompute aggregates the group from scratch and stores the result.
func (l *Leaderboard) Recompute(ctx context.Context, key domain.GroupKey) (domain.GroupStats, error) {
	stats, err := l.repo.ComputeStats(ctx, key)
	if err != nil {
		return domain.GroupStats{}, fmt.Errorf("compute stats: %w", err)
	}
	stats.GroupKey = key
	stats.UpdatedAt = l.now()
	if err := l.repo.SaveStats(ctx, stats); err != nil {
		return domain.GroupStats{}, fmt.Errorf("save stats: %w", err)
	}
	return stats, nil
}

// Reconcile recomputes every known group, at most parallel at a time.
func (l *Leaderboard) Reconcile(ctx context.Context, parallel int) (int, error) {
	groups, err := l.repo.Groups(ctx)
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}
	if parallel < 1 {
		parallel = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, key := range groups {
		key := key
		g.Go(func() error {
			_, err := l.Recompute(gctx, key)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	l.logger.Info("leaderboard reconciled", zap.Int("groups", len(groups)))
	return len(groups), nil
}

// RankOf returns 1 + the number of other entries that beat the user's entry.
// The boolean is false when the user has no entry in the group.
func (l *Leaderboard) RankOf(ctx context.Context, userID string, key domain.GroupKey) (int, bool, error) {
	entry, err := l.repo.FindEntry(ctx, key, userID)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find entry: %w", err)
	}
	better, err := l.repo.CountBetter(ctx, key, userID, entry.BestScore, entry.BestTimeMs)
	if err != nil {
		return 0, false, fmt.Errorf("count better: %w", err)
	}
	return int(better) + 1, true, nil
}

// LeaderboardQuery selects a listing; empty fields match any group.
type LeaderboardQuery struct {
	CategoryID   string
	Difficulty   string
	NumQuestions int
	Page         int
	Limit        int
}

// LeaderboardPage is a ranked listing. Stats and MyRank are set only when
// the query names exactly one group.
type LeaderboardPage struct {
	Entries []domain.RankedEntry `json:"entries"`
	Stats   *domain.GroupStats   `json:"stats,omitempty"`
	MyRank  *int                 `json:"myRank,omitempty"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
}

// ParseFilter validates a query's group fields.
func ParseFilter(q LeaderboardQuery) (EntryFilter, error) {
	filter := EntryFilter{CategoryID: strings.TrimSpace(q.CategoryID), NumQuestions: q.NumQuestions}
	if filter.NumQuestions < 0 {
		return EntryFilter{}, domain.Invalid("numQuestions must not be negative")
	}
	raw := strings.TrimSpace(q.Difficulty)
	switch {
	case raw == "":
	case strings.EqualFold(raw, string(domain.DifficultyAny)):
		filter.Difficulty = domain.DifficultyAny
	default:
		d, ok := domain.ParseDifficulty(raw)
		if !ok {
			return EntryFilter{}, domain.Invalid("unsupported difficulty " + raw)
		}
		filter.Difficulty = d
	}
	return filter, nil
}

// Query lists ranked entries together with the group stats and the caller's rank.
func (l *Leaderboard) Query(ctx context.Context, who domain.Identity, q LeaderboardQuery) (LeaderboardPage, error) {
	filter, err := ParseFilter(q)
	if err != nil {
		return LeaderboardPage{}, err
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = l.opts.DefaultPageSize
	}
	if limit > l.opts.MaxPageSize {
		limit = l.opts.MaxPageSize
	}
	offset := (page - 1) * limit

	entries, err := l.repo.ListEntries(ctx, filter, offset, limit)
	if err != nil {
		return LeaderboardPage{}, fmt.Errorf("list entries: %w", err)
	}

	result := LeaderboardPage{Entries: make([]domain.RankedEntry, 0, len(entries)), Page: page, Limit: limit}
	if !filter.Complete() {
		for i, e := range entries {
			result.Entries = append(result.Entries, domain.RankedEntry{Rank: offset + i + 1, LeaderboardEntry: e})
		}
		return result, nil
	}

	key := filter.Key()
	for i, e := range entries {
		rank := offset + i + 1
		switch {
		case i > 0 && !entries[i-1].Beats(e):
			rank = result.Entries[i-1].Rank
		case i == 0 && offset > 0:
			better, err := l.repo.CountBetter(ctx, key, e.UserID, e.BestScore, e.BestTimeMs)
			if err != nil {
				return LeaderboardPage{}, fmt.Errorf("count better: %w", err)
			}
			rank = int(better) + 1
		}
		result.Entries = append(result.Entries, domain.RankedEntry{Rank: rank, LeaderboardEntry: e})
	}

	stats, found, err := l.repo.GetStats(ctx, key)
	if err != nil {
		return LeaderboardPage{}, fmt.Errorf("get stats: %w", err)
	}
	if !found {
		stats = domain.GroupStats{GroupKey: key}
	}
	result.Stats = &stats

	if who.UserID != "" {
		rank, ok, err := l.RankOf(ctx, who.UserID, key)
		if err != nil {
			return LeaderboardPage{}, err
		}
		if ok {
			result.MyRank = &rank
		}
	}
	return result, nil
}
