// Package sqlite provides a single-file rating store for deployments without Postgres or Redis.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	"quiz-duel-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// RatingStore keeps participant records in a SQLite database.
type RatingStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies the schema.
func Open(path string) (*RatingStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &RatingStore{db: db, now: time.Now}, nil
}

func (s *RatingStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *RatingStore) EnsureRegistered(ctx context.Context, participantID, displayName string) (bool, domain.Player, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO players (id, display_name, rating, created_at) VALUES (?, ?, ?, ?)`,
		participantID, displayName, domain.DefaultRating, s.now().UTC().UnixMilli())
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("register player: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("register player: %w", err)
	}

	player := domain.Player{ID: participantID}
	err = s.db.QueryRowContext(ctx, `SELECT display_name, rating FROM players WHERE id = ?`, participantID).
		Scan(&player.DisplayName, &player.Rating)
	if err != nil {
		return false, domain.Player{}, fmt.Errorf("load player: %w", err)
	}
	return affected == 1, player, nil
}

func (s *RatingStore) AdjustRating(ctx context.Context, participantID string, delta int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE players SET rating = rating + ? WHERE id = ?`, delta, participantID)
	if err != nil {
		return fmt.Errorf("adjust rating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust rating: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotRegistered
	}
	return nil
}

func (s *RatingStore) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, rating FROM players ORDER BY rating DESC, seq ASC LIMIT ?`, n)
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
	return entries, rows.Err()
}

func (s *RatingStore) GetRating(ctx context.Context, participantID string) (int, error) {
	var rating int
	err := s.db.QueryRowContext(ctx, `SELECT rating FROM players WHERE id = ?`, participantID).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotRegistered
	}
	if err != nil {
		return 0, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}
