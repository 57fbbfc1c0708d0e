package memory

import (
	"context"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var group = domain.GroupKey{CategoryID: "go", Difficulty: domain.DifficultyEasy, NumQuestions: 5}

func upsert(t *testing.T, s *LeaderboardStore, user string, score int, timeMs *int64, at time.Time) {
	t.Helper()
	err := s.UpsertEntry(context.Background(), app.EntryUpdate{
		Key:           group,
		UserID:        user,
		LastAttemptAt: at,
		Best:          &app.BestRecord{Score: score, TimeMs: timeMs, AttemptID: user + "-best"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func ms(v int64) *int64 { return &v }

func TestLeaderboardStoreOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewLeaderboardStore()
	upsert(t, s, "untimed", 4, nil, t0)
	upsert(t, s, "slow", 4, ms(9000), t0)
	upsert(t, s, "fast", 4, ms(1000), t0)
	upsert(t, s, "top", 5, nil, t0)
	upsert(t, s, "tie-late", 3, ms(500), t0.Add(time.Minute))
	upsert(t, s, "tie-early", 3, ms(500), t0)

	got, _ := s.ListEntries(ctx, app.EntryFilter{CategoryID: "go", Difficulty: domain.DifficultyEasy, NumQuestions: 5}, 0, 10)
	want := []string{"top", "fast", "slow", "untimed", "tie-early", "tie-late"}
	for i, id := range want {
		if got[i].UserID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].UserID)
		}
	}

	better, _ := s.CountBetter(ctx, group, "slow", 4, ms(9000))
	if better != 2 {
		t.Fatalf("expected top and fast to beat slow, got %d", better)
	}
	better, _ = s.CountBetter(ctx, group, "untimed", 4, nil)
	if better != 3 {
		t.Fatalf("a missing time ranks behind every timed equal score, got %d", better)
	}
}

func TestLeaderboardStoreUpsertWithoutBestKeepsBest(t *testing.T) {
	ctx := context.Background()
	s := NewLeaderboardStore()
	upsert(t, s, "alice", 4, ms(1000), t0)
	err := s.UpsertEntry(ctx, app.EntryUpdate{Key: group, UserID: "alice", LastAttemptAt: t0.Add(time.Hour), DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e, _ := s.FindEntry(ctx, group, "alice")
	if e.BestScore != 4 || *e.BestTimeMs != 1000 || e.Attempts != 2 || e.DisplayName != "Alice" || !e.LastAttemptAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected entry %+v", e)
	}

	groups, _ := s.Groups(ctx)
	if len(groups) != 1 || groups[0] != group {
		t.Fatalf("unexpected groups %v", groups)
	}
	stats, _ := s.ComputeStats(ctx, group)
	if stats.ParticipantsCount != 1 || stats.TotalAttempts != 2 || stats.AvgScore != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
