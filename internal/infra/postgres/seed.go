package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
	"quiz-duel-service/internal/domain"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID   string `bun:"id,pk"`
	Data string `bun:"data,type:jsonb"`
}

// SeedQuestions upserts the given questions by id.
func SeedQuestions(ctx context.Context, db bun.IDB, questions []domain.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]questionRow, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, err
		}
		raw, err := json.Marshal(q)
		if err != nil {
			return 0, fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		rows = append(rows, questionRow{ID: q.ID, Data: string(raw)})
	}

	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	return len(rows), nil
}
