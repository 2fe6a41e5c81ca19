package cli

import (
	"log/slog"
	"path/filepath"
	"testing"

	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/infra/memory"
	"quiz-duel-service/internal/infra/sqlite"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate", "seed-questions"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Fatalf("expected subcommand %s, got %v err=%v", name, sub, err)
		}
	}
	if cmd.PersistentFlags().Lookup("config") == nil || cmd.PersistentFlags().Lookup("port") == nil {
		t.Fatalf("expected --config and --port flags")
	}
}

func TestOpenRatingsPicksBackend(t *testing.T) {
	logger := slog.Default()

	var cfg config.Config
	store, closeFn, err := openRatings(cfg, nil, nil, logger)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	closeFn()
	if _, ok := store.(*memory.RatingStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	cfg.SQLite.Path = filepath.Join(t.TempDir(), "ratings.db")
	store, closeFn, err = openRatings(cfg, nil, nil, logger)
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*sqlite.RatingStore); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}

	cfg.Ratings.Backend = config.BackendRedis
	if _, _, err := openRatings(cfg, nil, nil, logger); err == nil {
		t.Fatalf("expected error when redis is not configured")
	}
}

func TestOpenBunRequiresURL(t *testing.T) {
	if _, err := openBun(config.Config{}); err == nil {
		t.Fatalf("expected error without postgres url")
	}
}
