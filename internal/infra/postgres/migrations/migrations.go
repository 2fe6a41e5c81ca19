package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema changes applied by `quiz-duel migrate`.
var Migrations = migrate.NewMigrations()
