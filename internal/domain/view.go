package domain

import "time"

// QuestionView is the client-facing form of an attempt question.
type QuestionView struct {
	QID           string     `json:"qid"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	TimeLimitSec  *int       `json:"timeLimitSec,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	CorrectIndex  *int       `json:"correctIndex,omitempty"`
	SelectedIndex *int       `json:"selectedIndex,omitempty"`
	IsCorrect     *bool      `json:"isCorrect,omitempty"`
}

// AttemptView is a sanitized attempt: answers are revealed only once completed.
type AttemptView struct {
	AttemptID    string         `json:"attemptId"`
	UserID       string         `json:"userId"`
	CategoryID   string         `json:"categoryId"`
	CategoryName string         `json:"categoryName"`
	Strategy     Strategy       `json:"strategy"`
	Difficulty   Difficulty     `json:"difficulty,omitempty"`
	NumQuestions int            `json:"numQuestions"`
	State        AttemptState   `json:"state"`
	Questions    []QuestionView `json:"questions"`
	Answers      []Answer       `json:"answers"`
	StartedAt    time.Time      `json:"startedAt"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	Expired      bool           `json:"expired"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	Score        *int           `json:"score,omitempty"`
	MaxScore     int            `json:"maxScore"`
}

// View sanitizes the attempt for its owner.
func (a Attempt) View(now time.Time) AttemptView {
	c := a.Clone()
	reveal := c.Completed()
	questions := make([]QuestionView, len(c.Questions))
	for i, q := range c.Questions {
		qv := QuestionView{
			QID:          q.QID,
			Text:         q.Text,
			Options:      q.Options,
			TimeLimitSec: q.TimeLimitSec,
			Difficulty:   q.Difficulty,
		}
		if reveal {
			qv.CorrectIndex = q.CorrectIndex
			qv.SelectedIndex = q.SelectedIndex
			qv.IsCorrect = q.IsCorrect
		}
		questions[i] = qv
	}
	view := AttemptView{
		AttemptID:    c.ID,
		UserID:       c.UserID,
		CategoryID:   c.CategoryID,
		CategoryName: c.CategoryName,
		Strategy:     c.Strategy,
		Difficulty:   c.Difficulty,
		NumQuestions: c.NumQuestions,
		State:        c.State(),
		Questions:    questions,
		Answers:      c.Answers,
		StartedAt:    c.StartedAt,
		ExpiresAt:    c.ExpiresAt,
		Expired:      c.Expired(now),
		MaxScore:     c.MaxScore(),
	}
	if c.Result != nil {
		completedAt := c.Result.CompletedAt
		score := c.Result.Score
		view.CompletedAt = &completedAt
		view.Score = &score
	}
	return view
}
