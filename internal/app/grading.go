package app

import (
	"strings"

	"quiz-attempt-service/internal/domain"
)

// Grade annotates a copy of the snapshot with the submitted choices and
// returns it with the score. The first answer for a question id wins;
// unanswered questions are incorrect.
func Grade(questions []domain.AttemptQuestion, answers []domain.Answer) ([]domain.AttemptQuestion, int) {
	byQID := make(map[string]*int, len(answers))
	for _, a := range answers {
		if _, seen := byQID[a.QID]; seen {
			continue
		}
		byQID[a.QID] = a.SelectedIndex
	}

	graded := make([]domain.AttemptQuestion, len(questions))
	score := 0
	for i, q := range questions {
		g := q
		g.Options = append([]string(nil), q.Options...)
		var selected *int
		if sel := byQID[q.QID]; sel != nil {
			v := *sel
			selected = &v
		}
		correct := selected != nil && q.CorrectIndex != nil && *selected == *q.CorrectIndex
		if correct {
			score++
		}
		g.SelectedIndex = selected
		g.IsCorrect = &correct
		graded[i] = g
	}
	return graded, score
}

// ValidateAnswers rejects malformed answers before anything is persisted.
// Answers for question ids outside the snapshot are ignored.
func ValidateAnswers(questions []domain.AttemptQuestion, answers []domain.Answer) error {
	optionCount := make(map[string]int, len(questions))
	for _, q := range questions {
		optionCount[q.QID] = len(q.Options)
	}
	for _, a := range answers {
		if strings.TrimSpace(a.QID) == "" {
			return domain.Invalid("answer qid is required")
		}
		if a.SelectedIndex == nil {
			continue
		}
		if *a.SelectedIndex < 0 {
			return domain.Invalid("selected index out of range for " + a.QID)
		}
		if n, ok := optionCount[a.QID]; ok && *a.SelectedIndex >= n {
			return domain.Invalid("selected index out of range for " + a.QID)
		}
	}
	return nil
}
