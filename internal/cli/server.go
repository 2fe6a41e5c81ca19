package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/config"
	"quiz-duel-service/internal/infra/memory"
	pgstore "quiz-duel-service/internal/infra/postgres"
	redisstore "quiz-duel-service/internal/infra/redis"
	"quiz-duel-service/internal/infra/sqlite"
	"quiz-duel-service/internal/metrics"
	transport "quiz-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel())

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader
	if pool != nil && cfg.Bank.Path == "" {
		loader = pgstore.NewQuestionLoader(pool)
	} else {
		questions, err := memory.LoadQuestionFile(cfg.Bank.Path)
		if err != nil {
			return err
		}
		loader = memory.NewStaticQuestionLoader(questions)
	}

	bankTTL := config.Duration(cfg.Bank.TTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = redisstore.NewQuestionBank(redisClient, loader, bankTTL, logger)
	} else {
		bank = memory.NewQuestionBank(loader, bankTTL)
	}

	ratings, closeRatings, err := openRatings(cfg, redisClient, pool, logger)
	if err != nil {
		return err
	}
	defer closeRatings()

	var registry app.DuelRegistry
	if redisClient != nil {
		registry = redisstore.NewRegistry(redisClient, redisTTL, logger)
	} else {
		registry = memory.NewRegistry()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := transport.NewHub(logger)
	service := app.NewDuelService(registry, bank, ratings, hub,
		app.WithSettleDelay(config.Duration(cfg.Duel.SettleDelay, time.Second)),
		app.WithIdleTimeout(config.Duration(cfg.Duel.IdleTimeout, 60*time.Second)),
		app.WithLeaderboardSize(cfg.Duel.LeaderboardSize),
		app.WithLogger(logger),
		app.WithMetrics(metrics.NewCollector(reg)),
	)
	router := transport.NewRouter(service, transport.NewWSHandler(service, hub, logger), metrics.Handler(reg))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting duel service", "port", finalPort, "ratings", cfg.RatingsBackend())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openRatings(cfg config.Config, client *redis.Client, pool *pgxpool.Pool, logger *slog.Logger) (app.RatingStore, func(), error) {
	noop := func() {}
	switch backend := cfg.RatingsBackend(); backend {
	case config.BackendPostgres:
		if pool == nil {
			return nil, noop, fmt.Errorf("ratings backend %s: postgres not connected", backend)
		}
		return pgstore.NewRatingStore(pool), noop, nil
	case config.BackendRedis:
		if client == nil {
			return nil, noop, fmt.Errorf("ratings backend %s: redis not configured", backend)
		}
		return redisstore.NewRatingStore(client), noop, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close sqlite", "error", err)
			}
		}, nil
	default:
		return memory.NewRatingStore(), noop, nil
	}
}
