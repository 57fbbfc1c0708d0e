package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

func question(id, category string, d domain.Difficulty, status domain.QuestionStatus) domain.Question {
	return domain.Question{
		ID:         id,
		CategoryID: category,
		Type:       domain.QuestionMCQ,
		Difficulty: d,
		Text:       "question " + id,
		Options:    []string{"a", "b"},
		Status:     status,
	}
}

func TestQuestionStoreSamplesPublishedMatches(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	for i := 0; i < 6; i++ {
		store.Put(question(fmt.Sprintf("e%d", i), "go", domain.DifficultyEasy, domain.StatusPublished))
	}
	store.Put(question("draft", "go", domain.DifficultyEasy, domain.StatusDraft))
	store.Put(question("hard", "go", domain.DifficultyHard, domain.StatusPublished))
	store.Put(question("geo", "geo", domain.DifficultyEasy, domain.StatusPublished))

	got, err := store.Sample(ctx, app.QuestionFilter{CategoryID: "go", Difficulty: domain.DifficultyEasy}, 4)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if q.CategoryID != "go" || q.Difficulty != domain.DifficultyEasy || q.Status != domain.StatusPublished {
			t.Fatalf("sample returned non-matching question %+v", q)
		}
		if seen[q.ID] {
			t.Fatalf("duplicate question %s", q.ID)
		}
		seen[q.ID] = true
	}

	all, _ := store.Sample(ctx, app.QuestionFilter{CategoryID: "go", Difficulty: domain.DifficultyEasy}, 50)
	if len(all) != 6 {
		t.Fatalf("expected every published easy question, got %d", len(all))
	}
	if none, _ := store.Sample(ctx, app.QuestionFilter{CategoryID: "go"}, 0); len(none) != 0 {
		t.Fatalf("zero count must return nothing")
	}
}

func TestQuestionStoreRandomCategory(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore(
		question("g1", "go", domain.DifficultyHard, domain.StatusPublished),
		question("x1", "geo", domain.DifficultyHard, domain.StatusArchived),
	)
	id, ok, err := store.RandomCategory(ctx, domain.DifficultyHard)
	if err != nil || !ok || id != "go" {
		t.Fatalf("expected go, got %q %v %v", id, ok, err)
	}
	if _, ok, _ := store.RandomCategory(ctx, domain.DifficultyEasy); ok {
		t.Fatalf("no category has easy questions")
	}
}

func TestQuestionStoreRejectsDuplicateText(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore(question("q1", "go", domain.DifficultyEasy, domain.StatusPublished))

	dup := question("q2", "go", domain.DifficultyHard, domain.StatusPublished)
	dup.Text = "  QUESTION   q1 "
	if err := store.InsertQuestion(ctx, dup); !errors.Is(err, domain.ErrDuplicateQuestion) {
		t.Fatalf("expected ErrDuplicateQuestion, got %v", err)
	}
	other := dup
	other.CategoryID = "geo"
	if err := store.InsertQuestion(ctx, other); err != nil {
		t.Fatalf("same text in another category is allowed: %v", err)
	}
}
