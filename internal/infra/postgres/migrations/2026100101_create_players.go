package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed players.sql
var createPlayersSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.ExecContext(ctx, createPlayersSQL); err != nil {
				return err
			}
			_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS players_rating_idx ON players (rating DESC, seq ASC)`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS players`)
			return err
		},
	)
}
