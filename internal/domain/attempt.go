package domain

import "time"

// AttemptState is the explicit lifecycle state of an attempt.
type AttemptState string

const (
	StateInProgress AttemptState = "in_progress"
	StateCompleted  AttemptState = "completed"
)

// AttemptQuestion is the snapshot of a question taken when the attempt started.
type AttemptQuestion struct {
	QID           string     `bson:"qid" json:"qid"`
	Text          string     `bson:"text" json:"text"`
	Options       []string   `bson:"options" json:"options"`
	TimeLimitSec  *int       `bson:"timeLimitSec,omitempty" json:"timeLimitSec,omitempty"`
	Difficulty    Difficulty `bson:"difficulty" json:"difficulty"`
	CorrectIndex  *int       `bson:"correctIndex" json:"correctIndex,omitempty"`
	SelectedIndex *int       `bson:"selectedIndex,omitempty" json:"selectedIndex,omitempty"`
	IsCorrect     *bool      `bson:"isCorrect,omitempty" json:"isCorrect,omitempty"`
}

// Answer is a submitted choice; a nil SelectedIndex means unanswered.
type Answer struct {
	QID           string `bson:"qid" json:"qid"`
	SelectedIndex *int   `bson:"selectedIndex" json:"selectedIndex"`
}

// Completion exists only for completed attempts, so a completion time
// without a score cannot be represented.
type Completion struct {
	CompletedAt time.Time `bson:"completedAt" json:"completedAt"`
	Score       int       `bson:"score" json:"score"`
}

// Attempt is a single quiz run owned by one user.
type Attempt struct {
	ID             string            `bson:"_id" json:"attemptId"`
	UserID         string            `bson:"userId" json:"userId"`
	CategoryID     string            `bson:"categoryId" json:"categoryId"`
	CategoryName   string            `bson:"categoryName" json:"categoryName"`
	Strategy       Strategy          `bson:"strategy" json:"strategy"`
	Difficulty     Difficulty        `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	RequestedCount int               `bson:"requestedCount" json:"requestedCount"`
	NumQuestions   int               `bson:"numQuestions" json:"numQuestions"`
	Questions      []AttemptQuestion `bson:"questions" json:"questions"`
	Answers        []Answer          `bson:"answers" json:"answers"`
	StartedAt      time.Time         `bson:"startedAt" json:"startedAt"`
	ExpiresAt      time.Time         `bson:"expiresAt" json:"expiresAt"`
	Result         *Completion       `bson:"result,omitempty" json:"result,omitempty"`
}

// State derives the lifecycle state from the presence of a result.
func (a Attempt) State() AttemptState {
	if a.Result != nil {
		return StateCompleted
	}
	return StateInProgress
}

// Completed reports whether the attempt has been graded.
func (a Attempt) Completed() bool { return a.Result != nil }

// MaxScore is the number of snapshotted questions.
func (a Attempt) MaxScore() int { return len(a.Questions) }

// Expired reports whether an in-progress attempt is past its expiry.
func (a Attempt) Expired(now time.Time) bool {
	return a.Result == nil && !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// CanRetake reports whether the score is below the maximum. In-progress
// attempts have no score yet and may always be restarted.
func (a Attempt) CanRetake() bool {
	if a.Result == nil {
		return true
	}
	return a.Result.Score < a.MaxScore()
}

// ElapsedMs is the completion time in milliseconds, or nil when it cannot be computed.
func (a Attempt) ElapsedMs() *int64 {
	if a.Result == nil || a.StartedAt.IsZero() || a.Result.CompletedAt.IsZero() {
		return nil
	}
	d := a.Result.CompletedAt.Sub(a.StartedAt)
	if d < 0 {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// Clone returns a deep copy so callers never share snapshot slices.
func (a Attempt) Clone() Attempt {
	out := a
	out.Questions = make([]AttemptQuestion, len(a.Questions))
	for i, q := range a.Questions {
		out.Questions[i] = q.clone()
	}
	out.Answers = make([]Answer, len(a.Answers))
	for i, ans := range a.Answers {
		out.Answers[i] = Answer{QID: ans.QID, SelectedIndex: copyInt(ans.SelectedIndex)}
	}
	if a.Result != nil {
		r := *a.Result
		out.Result = &r
	}
	return out
}

// Reset returns the attempt restored to its pre-answered state with a fresh window.
// The snapshot, including correct answers, is kept.
func (a Attempt) Reset(now time.Time, ttl time.Duration) Attempt {
	out := a.Clone()
	out.Answers = []Answer{}
	out.Result = nil
	out.StartedAt = now
	out.ExpiresAt = now.Add(ttl)
	for i := range out.Questions {
		out.Questions[i].SelectedIndex = nil
		out.Questions[i].IsCorrect = nil
	}
	return out
}

func (q AttemptQuestion) clone() AttemptQuestion {
	out := q
	out.Options = append([]string(nil), q.Options...)
	out.TimeLimitSec = copyInt(q.TimeLimitSec)
	out.CorrectIndex = copyInt(q.CorrectIndex)
	out.SelectedIndex = copyInt(q.SelectedIndex)
	if q.IsCorrect != nil {
		v := *q.IsCorrect
		out.IsCorrect = &v
	}
	return out
}

// SnapshotQuestion copies a bank question into an attempt snapshot.
func SnapshotQuestion(q Question) AttemptQuestion {
	correct := q.CorrectIndex
	return AttemptQuestion{
		QID:          q.ID,
		Text:         q.Text,
		Options:      append([]string(nil), q.Options...),
		TimeLimitSec: copyInt(q.TimeLimitSec),
		Difficulty:   q.Difficulty,
		CorrectIndex: &correct,
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
