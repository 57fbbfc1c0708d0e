package domain

import "testing"

func TestQuestionValidate(t *testing.T) {
	valid := Question{
		ID: "q1", CategoryID: "go", Type: QuestionMCQ, Difficulty: DifficultyEasy,
		Text: "What is a channel?", Options: []string{"a", "b", "c"}, CorrectIndex: 2, Status: StatusPublished,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid question: %v", err)
	}

	zero := 0
	cases := map[string]func(q *Question){
		"no id":         func(q *Question) { q.ID = " " },
		"no category":   func(q *Question) { q.CategoryID = "" },
		"no text":       func(q *Question) { q.Text = "" },
		"difficulty":    func(q *Question) { q.Difficulty = "Any" },
		"status":        func(q *Question) { q.Status = "live" },
		"type":          func(q *Question) { q.Type = "essay" },
		"one option":    func(q *Question) { q.Options = []string{"a"} },
		"five options":  func(q *Question) { q.Options = []string{"a", "b", "c", "d", "e"} },
		"correct range": func(q *Question) { q.CorrectIndex = 3 },
		"tf options":    func(q *Question) { q.Type = QuestionTrueFalse },
		"time limit":    func(q *Question) { q.TimeLimitSec = &zero },
	}
	for name, mutate := range cases {
		q := valid
		q.Options = append([]string(nil), valid.Options...)
		mutate(&q)
		if err := q.Validate(); !IsInvalid(err) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}

	tf := valid
	tf.Type = QuestionTrueFalse
	tf.Options = []string{"True", "False"}
	tf.CorrectIndex = 1
	if err := tf.Validate(); err != nil {
		t.Fatalf("expected valid tf question: %v", err)
	}
}

func TestParseDifficultyAndStrategy(t *testing.T) {
	if d, ok := ParseDifficulty(" HARD "); !ok || d != DifficultyHard {
		t.Fatalf("expected hard, got %q %v", d, ok)
	}
	if _, ok := ParseDifficulty("Any"); ok {
		t.Fatalf("Any is not a question difficulty")
	}
	if s, ok := ParseStrategy(""); !ok || s != StrategyFixed {
		t.Fatalf("empty strategy defaults to fixed, got %q", s)
	}
	if _, ok := ParseStrategy("adaptive"); ok {
		t.Fatalf("unknown strategy accepted")
	}
}

func TestErrorKinds(t *testing.T) {
	if KindOf(ErrNoQuestions) != KindUnavailable || KindOf(ErrAlreadyCompleted) != KindConflict {
		t.Fatalf("unexpected kinds")
	}
	if KindOf(nil) != KindServer || IsInvalid(nil) {
		t.Fatalf("nil is not a domain error")
	}
	if KindUnavailable.String() != "unavailable" {
		t.Fatalf("unexpected kind name %s", KindUnavailable)
	}
}
