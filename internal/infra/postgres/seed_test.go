package postgres

import (
	"context"
	"errors"
	"testing"

	"quiz-duel-service/internal/domain"
)

func TestSeedQuestionsRejectsInvalidBeforeWriting(t *testing.T) {
	bad := []domain.Question{{ID: "q1", Prompt: "?", Options: []string{"a", "b"}, Answer: "c"}}
	n, err := SeedQuestions(context.Background(), nil, bad)
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing seeded, got %d", n)
	}
}

func TestSeedQuestionsEmpty(t *testing.T) {
	if n, err := SeedQuestions(context.Background(), nil, nil); err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}
}
