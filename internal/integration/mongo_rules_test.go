package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	inframongo "quiz-attempt-service/internal/infra/mongo"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMongoRetakeAndRankingRules(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	requireDocker(t)

	mongoURI, mongoCleanup := startMongo(t, ctx)
	defer mongoCleanup()

	client, err := inframongo.Connect(ctx, mongoURI, zap.NewNop())
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	db := client.Database("quiz_rules")
	if err := inframongo.EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	questions := inframongo.NewQuestionRepository(db)
	categories := inframongo.NewCategoryRepository(db)
	attempts := inframongo.NewAttemptRepository(db)
	board := inframongo.NewLeaderboardRepository(db)

	for _, q := range sampleQuestions() {
		if q.Validate() != nil || q.Difficulty != domain.DifficultyEasy || q.CategoryID != "go" {
			continue
		}
		if err := questions.InsertQuestion(ctx, q); err != nil {
			t.Fatalf("insert question: %v", err)
		}
		if err := categories.EnsureCategory(ctx, q.CategoryID, q.CategoryName, 1); err != nil {
			t.Fatalf("ensure category: %v", err)
		}
	}

	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	leaderboard := app.NewLeaderboard(board, nil, nil, app.LeaderboardOptions{}).WithClock(clock.Now)
	service := app.NewAttemptService(questions, categories, attempts, nil, app.Options{}, leaderboard).WithClock(clock.Now)

	alice := domain.Identity{UserID: "alice", DisplayName: "Alice"}
	bob := domain.Identity{UserID: "bob", DisplayName: "Bob"}
	req := app.StartRequest{CategoryID: "go", NumQuestions: 2, Difficulty: "easy"}

	play := func(who domain.Identity, took time.Duration, correct int) domain.Attempt {
		t.Helper()
		a, err := service.Start(ctx, who, req)
		if err != nil {
			t.Fatalf("start for %s: %v", who.UserID, err)
		}
		if a.NumQuestions != 2 {
			t.Fatalf("expected 2 questions, got %d", a.NumQuestions)
		}
		answers := make([]domain.Answer, 0, len(a.Questions))
		for i, q := range a.Questions {
			sel := *q.CorrectIndex
			if i >= correct {
				sel = (sel + 1) % len(q.Options)
			}
			answers = append(answers, domain.Answer{QID: q.QID, SelectedIndex: &sel})
		}
		clock.Advance(took)
		view, err := service.Submit(ctx, who, a.ID, answers)
		if err != nil {
			t.Fatalf("submit for %s: %v", who.UserID, err)
		}
		if *view.Score != correct {
			t.Fatalf("expected score %d, got %d", correct, *view.Score)
		}
		clock.Advance(time.Minute)
		return a
	}

	play(alice, 30*time.Second, 2)
	bobBest := play(bob, 45*time.Second, 2)
	bobWorse := play(bob, 10*time.Second, 1)

	key := domain.GroupKey{CategoryID: "go", Difficulty: domain.DifficultyEasy, NumQuestions: 2}
	entry, err := board.FindEntry(ctx, key, "bob")
	if err != nil {
		t.Fatalf("find bob entry: %v", err)
	}
	if entry.Attempts != 2 || entry.BestScore != 2 || entry.BestAttemptID != bobBest.ID {
		t.Fatalf("worse grading must only count the attempt, got %+v", entry)
	}
	if entry.BestTimeMs == nil || *entry.BestTimeMs != 45000 {
		t.Fatalf("expected best time 45000, got %v", entry.BestTimeMs)
	}

	// carol ties on score without a usable time and must rank behind both.
	if err := board.UpsertEntry(ctx, app.EntryUpdate{
		Key:           key,
		UserID:        "carol",
		LastAttemptAt: clock.Now(),
		DisplayName:   "Carol",
		Best:          &app.BestRecord{Score: 2, AttemptID: "carol-1"},
	}); err != nil {
		t.Fatalf("upsert carol: %v", err)
	}
	// dave only has a first non-best grading, which seeds a zero entry.
	if err := board.UpsertEntry(ctx, app.EntryUpdate{Key: key, UserID: "dave", LastAttemptAt: clock.Now(), DisplayName: "Dave"}); err != nil {
		t.Fatalf("upsert dave: %v", err)
	}
	if _, err := leaderboard.Recompute(ctx, key); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	page, err := leaderboard.Query(ctx, alice, app.LeaderboardQuery{CategoryID: "go", Difficulty: "easy", NumQuestions: 2})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	wantOrder := []string{"alice", "bob", "carol", "dave"}
	if len(page.Entries) != len(wantOrder) {
		t.Fatalf("expected %d entries, got %+v", len(wantOrder), page.Entries)
	}
	for i, want := range wantOrder {
		if page.Entries[i].UserID != want || page.Entries[i].Rank != i+1 {
			t.Fatalf("position %d: expected %s at rank %d, got %s at rank %d", i, want, i+1, page.Entries[i].UserID, page.Entries[i].Rank)
		}
	}
	if page.MyRank == nil || *page.MyRank != 1 {
		t.Fatalf("expected alice at rank 1, got %v", page.MyRank)
	}
	for i, user := range wantOrder {
		rank, ok, err := leaderboard.RankOf(ctx, user, key)
		if err != nil || !ok || rank != i+1 {
			t.Fatalf("rank of %s: got %d ok=%v err=%v", user, rank, ok, err)
		}
	}
	if page.Stats == nil || page.Stats.ParticipantsCount != 4 || page.Stats.TotalAttempts != 5 || page.Stats.TopScore != 2 {
		t.Fatalf("unexpected stats %+v", page.Stats)
	}

	second, err := leaderboard.Query(ctx, alice, app.LeaderboardQuery{CategoryID: "go", Difficulty: "easy", NumQuestions: 2, Page: 2, Limit: 1})
	if err != nil {
		t.Fatalf("leaderboard page 2: %v", err)
	}
	if len(second.Entries) != 1 || second.Entries[0].UserID != "bob" || second.Entries[0].Rank != 2 {
		t.Fatalf("unexpected second page %+v", second.Entries)
	}

	if _, err := service.Retake(ctx, bob, bobWorse.ID); err != nil {
		t.Fatalf("retake below max: %v", err)
	}
	stored, err := attempts.Get(ctx, bobWorse.ID)
	if err != nil {
		t.Fatalf("get retaken attempt: %v", err)
	}
	if stored.Result != nil || len(stored.Answers) != 0 {
		t.Fatalf("retake must clear result and answers, got %+v", stored)
	}
	for _, q := range stored.Questions {
		if q.SelectedIndex != nil || q.IsCorrect != nil {
			t.Fatalf("retake must clear per-question marks, got %+v", q)
		}
		if q.CorrectIndex == nil {
			t.Fatalf("retake must keep the answer key for grading")
		}
	}
	if !stored.StartedAt.Equal(clock.Now()) {
		t.Fatalf("expected restarted at %s, got %s", clock.Now(), stored.StartedAt)
	}
	view, err := service.Get(ctx, bob, bobWorse.ID)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.State != domain.StateInProgress || view.Score != nil {
		t.Fatalf("expected in-progress view, got %+v", view)
	}
	if _, err := service.Retake(ctx, bob, bobBest.ID); !errors.Is(err, domain.ErrRetakeNotAllowed) {
		t.Fatalf("expected ErrRetakeNotAllowed for a perfect attempt, got %v", err)
	}
}
