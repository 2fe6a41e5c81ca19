package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-duel-service/internal/domain"
)

// QuestionLoader fetches the full question set from a backing store (file, Postgres, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

const bankKey = "bank"

// QuestionBank caches the loaded questions with a TTL and samples duels from them.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sample returns n distinct questions in random order.
func (b *QuestionBank) Sample(ctx context.Context, n int) ([]domain.Question, error) {
	questions, err := b.all(ctx)
	if err != nil {
		return nil, err
	}
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return SampleDistinct(b.rnd, questions, n)
}

func (b *QuestionBank) all(ctx context.Context) ([]domain.Question, error) {
	now := b.clock()
	b.mu.RLock()
	if b.questions != nil && b.expiresAt.After(now) {
		questions := b.questions
		b.mu.RUnlock()
		return questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(bankKey, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if b.questions != nil && b.expiresAt.After(now) {
			questions := b.questions
			b.mu.RUnlock()
			return questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.questions = questions
		b.expiresAt = now.Add(b.ttlWithJitter())
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// SampleDistinct picks n questions with distinct IDs. It never repeats a
// question to make up the count; a short bank yields domain.ErrBankExhausted.
func SampleDistinct(rnd *rand.Rand, questions []domain.Question, n int) ([]domain.Question, error) {
	distinct := make([]domain.Question, 0, len(questions))
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		distinct = append(distinct, q)
	}
	if len(distinct) < n {
		return nil, fmt.Errorf("%w: have %d distinct questions, need %d", domain.ErrBankExhausted, len(distinct), n)
	}
	picked := make([]domain.Question, 0, n)
	for _, i := range rnd.Perm(len(distinct))[:n] {
		picked = append(picked, distinct[i])
	}
	return picked, nil
}
