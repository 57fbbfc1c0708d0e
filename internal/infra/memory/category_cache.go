package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// CategoryCache keeps category lookups in process memory with a TTL so
// attempt starts avoid a registry round trip. Counter writes pass through
// and are applied to the cached record as well.
type CategoryCache struct {
	next  app.CategoryRegistry
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.Mutex
	rnd   *rand.Rand
	cache map[string]cachedCategory
}

type cachedCategory struct {
	category  domain.Category
	expiresAt time.Time
}

func NewCategoryCache(next app.CategoryRegistry, ttl time.Duration) *CategoryCache {
	return &CategoryCache{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedCategory),
	}
}

func (c *CategoryCache) FindByID(ctx context.Context, id string) (domain.Category, error) {
	if cat, ok := c.lookup(id); ok {
		return cat, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if cat, ok := c.lookup(id); ok {
			return cat, nil
		}
		cat, err := c.next.FindByID(ctx, id)
		if err != nil {
			return domain.Category{}, err
		}
		c.mu.Lock()
		c.cache[id] = cachedCategory{category: cat, expiresAt: c.clock().Add(c.ttlWithJitterLocked())}
		c.mu.Unlock()
		return cat, nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	return result.(domain.Category), nil
}

func (c *CategoryCache) IncrementAttempts(ctx context.Context, id string) error {
	if err := c.next.IncrementAttempts(ctx, id); err != nil {
		return err
	}
	c.bump(id, func(cat *domain.Category) { cat.TotalAttempts++ })
	return nil
}

func (c *CategoryCache) IncrementQuizzes(ctx context.Context, id string) error {
	if err := c.next.IncrementQuizzes(ctx, id); err != nil {
		return err
	}
	c.bump(id, func(cat *domain.Category) { cat.TotalQuizzes++ })
	return nil
}

func (c *CategoryCache) lookup(id string) (domain.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Category{}, false
	}
	return entry.category, true
}

func (c *CategoryCache) bump(id string, apply func(*domain.Category)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[id]
	if !ok {
		return
	}
	apply(&entry.category)
	c.cache[id] = entry
}

// ttlWithJitterLocked adds up to 10% jitter to spread expirations. c.mu must be held.
func (c *CategoryCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
