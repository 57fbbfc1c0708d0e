package memory

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// QuestionStore is an in-memory question collection.
type QuestionStore struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	questions map[string]domain.Question
}

func NewQuestionStore(questions ...domain.Question) *QuestionStore {
	s := &QuestionStore{
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		questions: make(map[string]domain.Question),
	}
	for _, q := range questions {
		s.questions[q.ID] = cloneQuestion(q)
	}
	return s
}

// Put stores or replaces a question.
func (s *QuestionStore) Put(q domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = cloneQuestion(q)
}

// InsertQuestion adds a question unless its text already exists in the category.
func (s *QuestionStore) InsertQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.questions {
		if existing.ID == q.ID || (existing.CategoryID == q.CategoryID && normalizeText(existing.Text) == normalizeText(q.Text)) {
			return domain.ErrDuplicateQuestion
		}
	}
	s.questions[q.ID] = cloneQuestion(q)
	return nil
}

// Sample returns up to count matching published questions in random order.
func (s *QuestionStore) Sample(_ context.Context, filter app.QuestionFilter, count int) ([]domain.Question, error) {
	if count <= 0 {
		return []domain.Question{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pool := s.matchingLocked(filter)
	s.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > count {
		pool = pool[:count]
	}
	out := make([]domain.Question, len(pool))
	for i, q := range pool {
		out[i] = cloneQuestion(q)
	}
	return out, nil
}

// RandomCategory picks uniformly among categories with a matching published question.
func (s *QuestionStore) RandomCategory(_ context.Context, difficulty domain.Difficulty) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, q := range s.matchingLocked(app.QuestionFilter{Difficulty: difficulty}) {
		seen[q.CategoryID] = struct{}{}
	}
	if len(seen) == 0 {
		return "", false, nil
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[s.rnd.Intn(len(ids))], true, nil
}

// matchingLocked returns matches in id order so sampling depends only on the random source.
func (s *QuestionStore) matchingLocked(filter app.QuestionFilter) []domain.Question {
	pool := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.Status != domain.StatusPublished {
			continue
		}
		if filter.CategoryID != "" && q.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		pool = append(pool, q)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool
}

// normalizeText folds case and collapses whitespace for duplicate detection.
func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func cloneQuestion(q domain.Question) domain.Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	if q.TimeLimitSec != nil {
		v := *q.TimeLimitSec
		out.TimeLimitSec = &v
	}
	return out
}

// StaticQuestionBank is a question source backed by a fixed slice.
type StaticQuestionBank struct {
	questions []domain.Question
}

func NewStaticQuestionBank(questions []domain.Question) *StaticQuestionBank {
	return &StaticQuestionBank{questions: questions}
}

func (b *StaticQuestionBank) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(b.questions))
	for i, q := range b.questions {
		out[i] = cloneQuestion(q)
	}
	return out, nil
}
