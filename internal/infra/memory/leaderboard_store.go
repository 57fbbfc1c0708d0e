package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

type entryKey struct {
	group  string
	userID string
}

// LeaderboardStore is an in-memory implementation of app.LeaderboardRepository.
type LeaderboardStore struct {
	mu      sync.RWMutex
	entries map[entryKey]domain.LeaderboardEntry
	stats   map[string]domain.GroupStats
	groups  map[string]domain.GroupKey
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{
		entries: make(map[entryKey]domain.LeaderboardEntry),
		stats:   make(map[string]domain.GroupStats),
		groups:  make(map[string]domain.GroupKey),
	}
}

func (s *LeaderboardStore) FindEntry(_ context.Context, key domain.GroupKey, userID string) (domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryKey{group: key.String(), userID: userID}]
	if !ok {
		return domain.LeaderboardEntry{}, domain.ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

func (s *LeaderboardStore) UpsertEntry(_ context.Context, update app.EntryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey{group: update.Key.String(), userID: update.UserID}
	e, ok := s.entries[k]
	if !ok {
		e = domain.LeaderboardEntry{GroupKey: update.Key, UserID: update.UserID}
	}
	e.Attempts++
	e.LastAttemptAt = update.LastAttemptAt
	e.DisplayName = update.DisplayName
	e.AvatarURL = update.AvatarURL
	e.CategoryName = update.CategoryName
	if update.Best != nil {
		e.BestScore = update.Best.Score
		e.BestTimeMs = copyInt64(update.Best.TimeMs)
		e.BestAttemptID = update.Best.AttemptID
	}
	s.entries[k] = e
	s.groups[k.group] = update.Key
	return nil
}

func (s *LeaderboardStore) ComputeStats(_ context.Context, key domain.GroupKey) (domain.GroupStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.AggregateStats(key, s.groupEntriesLocked(key), s.stats[key.String()].UpdatedAt), nil
}

func (s *LeaderboardStore) SaveStats(_ context.Context, stats domain.GroupStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats.BestTimeMs = copyInt64(stats.BestTimeMs)
	s.stats[stats.GroupKey.String()] = stats
	return nil
}

func (s *LeaderboardStore) GetStats(_ context.Context, key domain.GroupKey) (domain.GroupStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[key.String()]
	if ok {
		stats.BestTimeMs = copyInt64(stats.BestTimeMs)
	}
	return stats, ok, nil
}

func (s *LeaderboardStore) ListEntries(_ context.Context, filter app.EntryFilter, offset, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LeaderboardEntry, 0)
	for _, e := range s.entries {
		if filter.CategoryID != "" && e.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Difficulty != "" && e.Difficulty != filter.Difficulty {
			continue
		}
		if filter.NumQuestions > 0 && e.NumQuestions != filter.NumQuestions {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Beats(out[j]) {
			return true
		}
		if out[j].Beats(out[i]) {
			return false
		}
		if !out[i].LastAttemptAt.Equal(out[j].LastAttemptAt) {
			return out[i].LastAttemptAt.Before(out[j].LastAttemptAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return page(out, offset, limit), nil
}

func (s *LeaderboardStore) CountBetter(_ context.Context, key domain.GroupKey, userID string, score int, timeMs *int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me := domain.LeaderboardEntry{BestScore: score, BestTimeMs: timeMs}
	var n int64
	for _, e := range s.groupEntriesLocked(key) {
		if e.UserID != userID && e.Beats(me) {
			n++
		}
	}
	return n, nil
}

func (s *LeaderboardStore) Groups(_ context.Context) ([]domain.GroupKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GroupKey, 0, len(s.groups))
	for _, k := range s.groups {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *LeaderboardStore) groupEntriesLocked(key domain.GroupKey) []domain.LeaderboardEntry {
	group := key.String()
	out := make([]domain.LeaderboardEntry, 0)
	for k, e := range s.entries {
		if k.group == group {
			out = append(out, e)
		}
	}
	return out
}

func cloneEntry(e domain.LeaderboardEntry) domain.LeaderboardEntry {
	e.BestTimeMs = copyInt64(e.BestTimeMs)
	return e
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
