package cli

import (
	"context"
	"fmt"
	"time"

	"adaptive-quiz/internal/app"
	"adaptive-quiz/internal/config"
	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/infra/file"
	"adaptive-quiz/internal/infra/memory"
	pgstore "adaptive-quiz/internal/infra/postgres"
	redisstore "adaptive-quiz/internal/infra/redis"
	"adaptive-quiz/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// buildService assembles the quiz service described by cfg. The returned cleanup
// closes every connection that was opened, also when an error is returned.
func buildService(ctx context.Context, cfg config.Config) (*app.QuizService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, cleanup, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
	}

	kv, err := buildKVStore(ctx, cfg, redisClient, pool)
	if err != nil {
		return nil, cleanup, err
	}
	if closer, ok := kv.(interface{ Close() error }); ok {
		closers = append(closers, func() { closer.Close() })
	}

	service := app.NewQuizService(kv, buildQuizRepository(cfg, redisClient, pool), app.Options{
		Key:         cfg.Storage.Key,
		DeferOffset: cfg.Quiz.DeferOffset,
		Endless:     cfg.Quiz.Endless,
		Seed:        cfg.Quiz.Seed,
	})
	return service, cleanup, nil
}

func buildKVStore(ctx context.Context, cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) (app.KeyValueStore, error) {
	switch driver := cfg.StorageDriver(); driver {
	case config.DriverMemory:
		return memory.NewKVStore(), nil
	case config.DriverNone:
		return nil, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("storage driver %q needs redis.addr", driver)
		}
		return redisstore.NewKVStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 0)), nil
	case config.DriverPostgres:
		if pool == nil {
			return nil, fmt.Errorf("storage driver %q needs postgres.url", driver)
		}
		return pgstore.NewKVStore(pool), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDriver, driver)
	}
}

// buildQuizRepository picks the quiz source (file, then Postgres, then the
// built-in samples) and puts a Redis or in-process cache in front of it.
func buildQuizRepository(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) app.QuestionRepository {
	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	switch {
	case cfg.Quiz.Source != "":
		loader = file.NewQuizLoader(cfg.Quiz.Source)
	case pool != nil:
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		return redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	}
	return memory.NewQuizRepository(loader, quizTTL)
}

// defaultQuizID is played when --quiz is not given. config/quizzes.yaml ships it too.
const defaultQuizID = "sample"

// sampleQuizzes is served when no quiz source is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		defaultQuizID: {
			ID:    defaultQuizID,
			Title: "Warm-up",
			Questions: []domain.Question{
				{ID: "add", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
				{ID: "sub", Prompt: "What is 9 - 3?", Options: []string{"5", "6", "7"}, CorrectAnswer: "6"},
				{ID: "mul", Prompt: "What is 3 x 3?", Options: []string{"6", "9", "12"}, CorrectAnswer: "9"},
			},
		},
	}
}
