package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

// QuestionBank caches questions in Redis and falls back to a loader on cache miss.
// Questions are stored as: HSET duel:bank:questions {questionID} {json}
// A non-positive ttl disables the cache and every sample reloads.
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration, logger *slog.Logger) *QuestionBank {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sample draws n distinct questions. A cached set too small for n is
// rebuilt from the loader once before the bank reports exhaustion.
func (b *QuestionBank) Sample(ctx context.Context, n int) ([]domain.Question, error) {
	questions, fromCache, err := b.all(ctx)
	if err != nil {
		return nil, err
	}
	picked, err := b.sample(questions, n)
	if !fromCache || !errors.Is(err, domain.ErrBankExhausted) {
		return picked, err
	}
	if questions, err = b.reload(ctx); err != nil {
		return nil, err
	}
	return b.sample(questions, n)
}

func (b *QuestionBank) sample(questions []domain.Question, n int) ([]domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return memory.SampleDistinct(b.rnd, questions, n)
}

func (b *QuestionBank) all(ctx context.Context) ([]domain.Question, bool, error) {
	if b.ttl <= 0 {
		questions, err := b.loader.LoadQuestions(ctx)
		return questions, false, err
	}
	if cached, ok := b.cached(ctx); ok {
		return cached, true, nil
	}

	result, err, _ := b.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, ok := b.cached(ctx); ok {
			return cached, nil
		}
		return b.load(ctx)
	})
	if err != nil {
		return nil, false, err
	}
	return result.([]domain.Question), false, nil
}

func (b *QuestionBank) reload(ctx context.Context) ([]domain.Question, error) {
	result, err, _ := b.sf.Do(questionsKey+":reload", func() (interface{}, error) {
		return b.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// load reads the loader and refills the cache; a failed fill is logged, not returned.
func (b *QuestionBank) load(ctx context.Context) ([]domain.Question, error) {
	questions, err := b.loader.LoadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.fill(ctx, questions); err != nil {
		b.logger.Warn("question cache fill failed", "error", err)
	}
	return questions, nil
}

// fill replaces the cached hash in one MULTI so readers never see a partial set.
func (b *QuestionBank) fill(ctx context.Context, questions []domain.Question) error {
	values := make([]interface{}, 0, 2*len(questions))
	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode question %s: %w", q.ID, err)
		}
		values = append(values, q.ID, raw)
	}
	ttl := b.ttlWithJitter()
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, questionsKey)
		if len(values) > 0 {
			pipe.HSet(ctx, questionsKey, values...)
			pipe.Expire(ctx, questionsKey, ttl)
		}
		return nil
	})
	return err
}

// cached reports a hit only for a non-empty hash whose entries all decode and validate.
func (b *QuestionBank) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := b.client.HGetAll(ctx, questionsKey).Result()
	if err != nil {
		b.logger.Warn("question cache read failed", "error", err)
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}
	questions := make([]domain.Question, 0, len(raw))
	for id, data := range raw {
		var q domain.Question
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			b.logger.Warn("dropping unreadable question cache", "question", id, "error", err)
			return nil, false
		}
		if err := q.Validate(); err != nil {
			b.logger.Warn("dropping invalid question cache", "question", id, "error", err)
			return nil, false
		}
		questions = append(questions, q)
	}
	return questions, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

const questionsKey = "duel:bank:questions"
