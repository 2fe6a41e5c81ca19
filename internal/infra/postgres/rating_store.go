package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-duel-service/internal/domain"
)

// RatingStore keeps participant records in the players table.
type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

func (s *RatingStore) EnsureRegistered(ctx context.Context, participantID, displayName string) (bool, domain.Player, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO players (id, display_name, rating) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		participantID, displayName, domain.DefaultRating)
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("register player: %w", err)
	}

	player := domain.Player{ID: participantID}
	err = s.pool.QueryRow(ctx, `SELECT display_name, rating FROM players WHERE id=$1`, participantID).
		Scan(&player.DisplayName, &player.Rating)
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("load player: %w", err)
	}
	return tag.RowsAffected() == 1, player, nil
}

func (s *RatingStore) AdjustRating(ctx context.Context, participantID string, delta int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE players SET rating = rating + $2 WHERE id=$1`, participantID, delta)
	if err != nil {
		return fmt.Errorf("adjust rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotRegistered
	}
	return nil
}

// TopN orders by rating descending; seq preserves registration order on ties.
func (s *RatingStore) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name, rating FROM players ORDER BY rating DESC, seq ASC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		entry := domain.LeaderboardEntry{Rank: len(entries) + 1}
		if err := rows.Scan(&entry.PlayerID, &entry.DisplayName, &entry.Rating); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

func (s *RatingStore) GetRating(ctx context.Context, participantID string) (int, error) {
	var rating int
	err := s.pool.QueryRow(ctx, `SELECT rating FROM players WHERE id=$1`, participantID).Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotRegistered
	}
	if err != nil {
		return 0, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}
