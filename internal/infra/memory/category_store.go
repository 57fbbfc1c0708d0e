package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// CategoryStore is an in-memory category registry.
type CategoryStore struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
}

func NewCategoryStore(categories ...domain.Category) *CategoryStore {
	s := &CategoryStore{categories: make(map[string]domain.Category)}
	for _, c := range categories {
		s.categories[c.ID] = c
	}
	return s
}

func (s *CategoryStore) FindByID(_ context.Context, id string) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return c, nil
}

func (s *CategoryStore) IncrementAttempts(_ context.Context, id string) error {
	return s.update(id, func(c *domain.Category) { c.TotalAttempts++ })
}

func (s *CategoryStore) IncrementQuizzes(_ context.Context, id string) error {
	return s.update(id, func(c *domain.Category) { c.TotalQuizzes++ })
}

// EnsureCategory creates the category if needed and adds questionDelta to its count.
func (s *CategoryStore) EnsureCategory(_ context.Context, id, name string, questionDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		c = domain.Category{ID: id, Name: name}
	}
	c.QuestionCount += questionDelta
	s.categories[id] = c
	return nil
}

func (s *CategoryStore) update(id string, fn func(c *domain.Category)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return domain.ErrCategoryNotFound
	}
	fn(&c)
	s.categories[id] = c
	return nil
}
