package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// CategoryCache is a read-through cache in front of a category registry.
// Categories are stored as: HSET category:{id} name .. questionCount .. totalAttempts .. totalQuizzes ..
// Counter writes go to the registry and are mirrored onto the cached hash
// when it exists, so a bump never forces the next lookup back to the registry.
type CategoryCache struct {
	client *redis.Client
	next   app.CategoryRegistry
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCategoryCache(client *redis.Client, next app.CategoryRegistry, ttl time.Duration, logger *zap.Logger) *CategoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryCache{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CategoryCache) FindByID(ctx context.Context, id string) (domain.Category, error) {
	key := c.key(id)
	if cat, ok := c.cached(ctx, id, key); ok {
		return cat, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Another caller may have filled the hash while we waited.
		if cat, ok := c.cached(ctx, id, key); ok {
			return cat, nil
		}
		cat, err := c.next.FindByID(ctx, id)
		if err != nil {
			return domain.Category{}, err
		}
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key,
			"name", cat.Name,
			"questionCount", cat.QuestionCount,
			"totalAttempts", cat.TotalAttempts,
			"totalQuizzes", cat.TotalQuizzes,
		)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			c.logger.Warn("cache category", zap.String("categoryId", id), zap.Error(err))
		}
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
	c.bump(ctx, id, "totalAttempts")
	return nil
}

func (c *CategoryCache) IncrementQuizzes(ctx context.Context, id string) error {
	if err := c.next.IncrementQuizzes(ctx, id); err != nil {
		return err
	}
	c.bump(ctx, id, "totalQuizzes")
	return nil
}

// bumpIfCached increments a counter field only on an existing hash; a missing
// hash stays missing and is refilled from the registry on the next lookup.
var bumpIfCached = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
end
return -1
`)

func (c *CategoryCache) bump(ctx context.Context, id, field string) {
	if err := bumpIfCached.Run(ctx, c.client, []string{c.key(id)}, field).Err(); err != nil {
		c.logger.Warn("bump cached category counter", zap.String("categoryId", id), zap.Error(err))
		c.invalidate(ctx, id)
	}
}

func (c *CategoryCache) cached(ctx context.Context, id, key string) (domain.Category, bool) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return domain.Category{}, false
	}
	return domain.Category{
		ID:            id,
		Name:          fields["name"],
		QuestionCount: parseCount(fields["questionCount"]),
		TotalAttempts: parseCount(fields["totalAttempts"]),
		TotalQuizzes:  parseCount(fields["totalQuizzes"]),
	}, true
}

func (c *CategoryCache) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("invalidate category cache", zap.String("categoryId", id), zap.Error(err))
	}
}

func (c *CategoryCache) key(id string) string {
	return "category:" + id
}

func (c *CategoryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
