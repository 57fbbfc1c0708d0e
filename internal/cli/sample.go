package cli

import "quiz-attempt-service/internal/domain"

// sampleQuestions is a small bank for running without a database.
func sampleQuestions() []domain.Question {
	mcq := func(id, category, name string, difficulty domain.Difficulty, text string, options []string, correct int) domain.Question {
		return domain.Question{
			ID:           id,
			CategoryID:   category,
			CategoryName: name,
			Type:         domain.QuestionMCQ,
			Difficulty:   difficulty,
			Text:         text,
			Options:      options,
			CorrectIndex: correct,
			Status:       domain.StatusPublished,
		}
	}
	tf := func(id, category, name string, difficulty domain.Difficulty, text string, answer bool) domain.Question {
		correct := 1
		if answer {
			correct = 0
		}
		return domain.Question{
			ID:           id,
			CategoryID:   category,
			CategoryName: name,
			Type:         domain.QuestionTrueFalse,
			Difficulty:   difficulty,
			Text:         text,
			CorrectIndex: correct,
			Status:       domain.StatusPublished,
		}
	}
	return []domain.Question{
		mcq("go-1", "go", "Go", domain.DifficultyEasy, "Which keyword starts a goroutine?", []string{"go", "async", "spawn", "thread"}, 0),
		mcq("go-2", "go", "Go", domain.DifficultyEasy, "What is the zero value of a pointer?", []string{"0", "nil", "undefined"}, 1),
		tf("go-3", "go", "Go", domain.DifficultyEasy, "Maps are safe for concurrent writes.", false),
		mcq("go-4", "go", "Go", domain.DifficultyMedium, "Which package provides WaitGroup?", []string{"context", "sync", "runtime", "os"}, 1),
		tf("go-5", "go", "Go", domain.DifficultyMedium, "A nil slice has length zero.", true),
		mcq("go-6", "go", "Go", domain.DifficultyMedium, "What does defer run on?", []string{"Block exit", "Function return", "Goroutine exit"}, 1),
		mcq("go-7", "go", "Go", domain.DifficultyHard, "Which escape hatch disables type safety?", []string{"reflect", "unsafe", "cgo", "plugin"}, 1),
		tf("go-8", "go", "Go", domain.DifficultyHard, "Closing a nil channel panics.", true),
		mcq("go-9", "go", "Go", domain.DifficultyHard, "What does GOMAXPROCS bound?", []string{"Goroutines", "OS threads running Go code", "Heap size"}, 1),
		mcq("geo-1", "geography", "Geography", domain.DifficultyEasy, "What is the capital of France?", []string{"Paris", "Lyon", "Nice"}, 0),
		tf("geo-2", "geography", "Geography", domain.DifficultyEasy, "The Nile flows north.", true),
		mcq("geo-3", "geography", "Geography", domain.DifficultyMedium, "Which is the largest ocean?", []string{"Atlantic", "Indian", "Pacific", "Arctic"}, 2),
		mcq("geo-4", "geography", "Geography", domain.DifficultyHard, "Which country has the most time zones?", []string{"Russia", "USA", "France", "China"}, 2),
	}
}
