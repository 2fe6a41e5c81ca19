package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

func TestQuestionBankCachesInRedis(t *testing.T) {
	mr := startRedis(t)
	questions, err := memory.DefaultQuestions()
	if err != nil {
		t.Fatalf("default questions: %v", err)
	}
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(questions)}
	bank := NewQuestionBank(newClient(mr), loader, time.Minute, nil)

	picked, err := bank.Sample(context.Background(), 3)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(picked) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(picked))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists(questionsKey) {
		t.Fatalf("expected questions cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	picked, _ = bank.Sample(context.Background(), 3)
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	for _, q := range picked {
		if err := q.Validate(); err != nil {
			t.Fatalf("cached question lost content: %v", err)
		}
	}
}

func TestQuestionBankExhausted(t *testing.T) {
	loader := memory.NewStaticQuestionLoader([]domain.Question{
		{ID: "q1", Prompt: "?", Options: []string{"a", "b"}, Answer: "a"},
	})
	bank := NewQuestionBank(newClient(startRedis(t)), loader, time.Minute, nil)

	if _, err := bank.Sample(context.Background(), 3); !errors.Is(err, domain.ErrBankExhausted) {
		t.Fatalf("expected ErrBankExhausted, got %v", err)
	}
}

func TestQuestionBankZeroTTLReloadsEverySample(t *testing.T) {
	mr := startRedis(t)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(testQuestions(t))}
	bank := NewQuestionBank(newClient(mr), loader, 0, nil)

	for i := 0; i < 2; i++ {
		if _, err := bank.Sample(context.Background(), 3); err != nil {
			t.Fatalf("sample: %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected a load per sample, got %d", loader.calls)
	}
	if mr.Exists(questionsKey) {
		t.Fatalf("expected nothing cached with zero ttl")
	}
}

func TestQuestionBankReplacesShortCache(t *testing.T) {
	mr := startRedis(t)
	stale, _ := json.Marshal(domain.Question{ID: "stale", Prompt: "?", Options: []string{"a", "b"}, Answer: "a"})
	mr.HSet(questionsKey, "stale", string(stale))

	questions := testQuestions(t)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(questions)}
	bank := NewQuestionBank(newClient(mr), loader, time.Minute, nil)

	if _, err := bank.Sample(context.Background(), 3); err != nil {
		t.Fatalf("sample over short cache: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected one reload, got %d", loader.calls)
	}
	fields, err := mr.HKeys(questionsKey)
	if err != nil {
		t.Fatalf("hkeys: %v", err)
	}
	if len(fields) != len(questions) || slices.Contains(fields, "stale") {
		t.Fatalf("expected cache rebuilt from loader, got %v", fields)
	}
	if mr.TTL(questionsKey) <= 0 {
		t.Fatalf("expected ttl on rebuilt cache")
	}
}

func TestQuestionBankIgnoresCorruptCache(t *testing.T) {
	mr := startRedis(t)
	mr.HSet(questionsKey, "broken", "{not json")

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(testQuestions(t))}
	bank := NewQuestionBank(newClient(mr), loader, time.Minute, nil)
	if _, err := bank.Sample(context.Background(), 3); err != nil {
		t.Fatalf("sample over corrupt cache: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader fallback, got %d calls", loader.calls)
	}
}

func testQuestions(t *testing.T) []domain.Question {
	t.Helper()
	questions, err := memory.DefaultQuestions()
	if err != nil {
		t.Fatalf("default questions: %v", err)
	}
	return questions
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}
