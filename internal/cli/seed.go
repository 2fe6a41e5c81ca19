package cli

import (
	"context"

	"github.com/spf13/cobra"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/infra/memory"
	"quiz-duel-service/internal/infra/postgres"
)

// NewSeedCmd loads a YAML question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-questions",
		Short: "Upsert questions into Postgres (built-in bank unless --file is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML question bank to load")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel())
	if file == "" {
		file = cfg.Bank.Path
	}
	questions, err := memory.LoadQuestionFile(file)
	if err != nil {
		return err
	}

	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := applyMigrations(ctx, db, logger); err != nil {
		return err
	}
	n, err := postgres.SeedQuestions(ctx, db, questions)
	if err != nil {
		return err
	}
	logger.Info("questions seeded", "count", n)
	return nil
}
