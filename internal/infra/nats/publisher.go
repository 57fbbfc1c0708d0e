package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// GradedSubject carries one message per graded attempt.
const GradedSubject = "quiz.attempt.graded"

type conn interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with a client name and unlimited reconnects.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("quiz-attempt-service"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// GradedMessage is the wire form of a graded attempt.
type GradedMessage struct {
	AttemptID    string            `json:"attemptId"`
	UserID       string            `json:"userId"`
	CategoryID   string            `json:"categoryId"`
	Strategy     domain.Strategy   `json:"strategy"`
	Difficulty   domain.Difficulty `json:"difficulty,omitempty"`
	NumQuestions int               `json:"numQuestions"`
	Score        int               `json:"score"`
	MaxScore     int               `json:"maxScore"`
	TimeMs       *int64            `json:"timeMs"`
	CompletedAt  time.Time         `json:"completedAt"`
	GradedAt     time.Time         `json:"gradedAt"`
}

// GradedPublisher is a grading projector that announces completed attempts.
type GradedPublisher struct {
	conn    conn
	subject string
}

func NewGradedPublisher(nc *nats.Conn) *GradedPublisher {
	return &GradedPublisher{conn: nc, subject: GradedSubject}
}

func (p *GradedPublisher) Name() string { return "nats-graded" }

func (p *GradedPublisher) Project(_ context.Context, event app.GradedEvent) error {
	a := event.Attempt
	if a.Result == nil {
		return fmt.Errorf("attempt %s is not completed", a.ID)
	}
	msg := GradedMessage{
		AttemptID:    a.ID,
		UserID:       a.UserID,
		CategoryID:   a.CategoryID,
		Strategy:     a.Strategy,
		Difficulty:   a.Difficulty,
		NumQuestions: a.NumQuestions,
		Score:        a.Result.Score,
		MaxScore:     a.MaxScore(),
		TimeMs:       a.ElapsedMs(),
		CompletedAt:  a.Result.CompletedAt,
		GradedAt:     event.GradedAt,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode graded message: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}
