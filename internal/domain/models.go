package domain

import (
	"strings"
)

// Difficulty of a question, or DifficultyAny for unconstrained leaderboard groups.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyAny    Difficulty = "Any"
)

// ParseDifficulty normalizes raw to one of easy|medium|hard.
func ParseDifficulty(raw string) (Difficulty, bool) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(raw))) {
	case DifficultyEasy:
		return DifficultyEasy, true
	case DifficultyMedium:
		return DifficultyMedium, true
	case DifficultyHard:
		return DifficultyHard, true
	}
	return "", false
}

// QuestionType is mcq or tf.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "tf"
)

// QuestionStatus controls whether a question can be sampled.
type QuestionStatus string

const (
	StatusPublished QuestionStatus = "published"
	StatusDraft     QuestionStatus = "draft"
	StatusArchived  QuestionStatus = "archived"
)

// Strategy selects how an attempt's questions are picked.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyProgressive Strategy = "progressive"
	StrategyRandom      Strategy = "random"
)

// ParseStrategy accepts an empty value as fixed.
func ParseStrategy(raw string) (Strategy, bool) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyFixed:
		return StrategyFixed, true
	case StrategyProgressive:
		return StrategyProgressive, true
	case StrategyRandom:
		return StrategyRandom, true
	}
	return "", false
}

var trueFalseOptions = []string{"True", "False"}

// Question is an admin-authored question in the bank.
type Question struct {
	ID           string         `bson:"_id" json:"id"`
	CategoryID   string         `bson:"categoryId" json:"categoryId"`
	CategoryName string         `bson:"categoryName" json:"categoryName"`
	Type         QuestionType   `bson:"type" json:"type"`
	Difficulty   Difficulty     `bson:"difficulty" json:"difficulty"`
	Text         string         `bson:"text" json:"text"`
	Options      []string       `bson:"options" json:"options"`
	CorrectIndex int            `bson:"correctIndex" json:"correctIndex"`
	TimeLimitSec *int           `bson:"timeLimitSec,omitempty" json:"timeLimitSec,omitempty"`
	Status       QuestionStatus `bson:"status" json:"status"`
}

// Validate reports the first problem that makes the question unusable.
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return Invalid("question id is required")
	}
	if strings.TrimSpace(q.CategoryID) == "" {
		return Invalid("question category is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return Invalid("question text is required")
	}
	if _, ok := ParseDifficulty(string(q.Difficulty)); !ok {
		return Invalid("unsupported difficulty " + string(q.Difficulty))
	}
	switch q.Status {
	case StatusPublished, StatusDraft, StatusArchived:
	default:
		return Invalid("unsupported status " + string(q.Status))
	}
	switch q.Type {
	case QuestionMCQ:
		if len(q.Options) < 2 || len(q.Options) > 4 {
			return Invalid("mcq questions need 2 to 4 options")
		}
	case QuestionTrueFalse:
		if len(q.Options) != 2 || q.Options[0] != trueFalseOptions[0] || q.Options[1] != trueFalseOptions[1] {
			return Invalid(`tf questions must have options ["True","False"]`)
		}
	default:
		return Invalid("unsupported question type " + string(q.Type))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return Invalid("correct index out of range")
	}
	if q.TimeLimitSec != nil && *q.TimeLimitSec <= 0 {
		return Invalid("time limit must be positive")
	}
	return nil
}

// Category is the registry record used for name denormalization and counters.
type Category struct {
	ID            string `bson:"_id" json:"id"`
	Name          string `bson:"name" json:"name"`
	QuestionCount int64  `bson:"questionCount" json:"questionCount"`
	TotalAttempts int64  `bson:"totalAttempts" json:"totalAttempts"`
	TotalQuizzes  int64  `bson:"totalQuizzes" json:"totalQuizzes"`
}

// Identity is the already-authenticated caller.
type Identity struct {
	UserID      string
	Role        string
	DisplayName string
	AvatarURL   string
}

// IsAdmin reports whether the caller has the admin role.
func (i Identity) IsAdmin() bool { return i.Role == "admin" }
