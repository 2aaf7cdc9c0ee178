package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-race-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store (file, Postgres, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache keeps the question bank as one JSON value in Redis and falls back
// to a loader on cache miss, so instances share a single load per TTL.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

const questionsKey = "trivia:questions"

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.cached(ctx); ok {
			return qs, nil
		}

		qs, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(qs)
		if err != nil {
			return nil, fmt.Errorf("marshal questions: %w", err)
		}
		_ = c.client.Set(ctx, questionsKey, data, c.ttlWithJitter()).Err()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	data, err := c.client.Get(ctx, questionsKey).Bytes()
	if err != nil {
		// redis.Nil on a miss; other errors fall back to the loader too
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(data, &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
