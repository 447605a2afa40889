// Package app собирает хранилища и сервисы по конфигурации.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"wellness-score/internal/adapters/memory"
	"wellness-score/internal/adapters/repo"
	"wellness-score/internal/adapters/scorestore"
	"wellness-score/internal/domain"
	"wellness-score/internal/infra/cache"
	"wellness-score/internal/infra/config"
	"wellness-score/internal/infra/db"
	"wellness-score/internal/infra/queue"
	"wellness-score/internal/usecase/behavior"
	"wellness-score/internal/usecase/intake"
	"wellness-score/internal/usecase/recommend"
	"wellness-score/internal/usecase/score"
	"wellness-score/internal/usecase/scorecache"
)

// EnvDemo включает хранение в памяти без внешних зависимостей.
const EnvDemo = "demo"

// Backends хранит выбранные реализации хранилищ и очереди.
type Backends struct {
	Users   domain.UserRepo
	Events  domain.ConsumptionRepo
	Scores  domain.ScoreCacheRepo
	Recs    domain.RecommendationRepo
	History domain.RecommendationHistory
	Queue   domain.ConsumptionQueue
	// Pruner задан только для Postgres: в Redis срок хранения задан TTL ключа.
	Pruner scorecache.Pruner
	Redis  *redis.Client
	// Memory задан в демо-режиме.
	Memory *memory.Store

	closers []func()
}

// Close освобождает соединения в обратном порядке.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open подключает хранилища по конфигурации.
func Open(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Backends, error) {
	if cfg.AppEnv == EnvDemo {
		store := memory.NewStore()
		return &Backends{
			Users:   store,
			Events:  store,
			Scores:  store,
			Recs:    store,
			History: store,
			Queue:   memory.NewQueue(256),
			Memory:  store,
		}, nil
	}

	b := &Backends{}
	if cfg.PGDSN == "" {
		return nil, errors.New("не указан PG_DSN")
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("подключение к БД: %w", err)
	}
	b.closers = append(b.closers, pool.Close)

	pg := repo.NewPostgres(pool)
	caps, err := pg.ProbeCapabilities(ctx)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("проверка схемы: %w", err)
	}
	if !caps.Recommendations {
		logger.Warn().Msg("app: таблицы рекомендаций не найдены, рекомендации отключены")
	}
	b.Users, b.Events = pg, pg
	b.Recs, b.History = repo.RecommendationStores(pg, caps)

	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Redis = client
		b.closers = append(b.closers, func() { _ = client.Close() })
	}

	var scores domain.ScoreCacheRepo
	switch cfg.ScoreCache.Backend {
	case "redis":
		if b.Redis == nil {
			b.Close()
			return nil, errors.New("SCORE_CACHE_BACKEND=redis требует REDIS_ADDR")
		}
		scores = scorestore.NewRedis(b.Redis, ScoreRetention(cfg, logger))
	case "", "postgres":
		scores = pg
		b.Pruner = pg
	default:
		b.Close()
		return nil, fmt.Errorf("неизвестный SCORE_CACHE_BACKEND %q", cfg.ScoreCache.Backend)
	}
	b.Scores = scorestore.NewBreaker(scores, scorestore.BreakerConfig{
		Name:     "score-store-" + cfg.ScoreCache.Backend,
		Failures: cfg.Breaker.Failures,
		Timeout:  cfg.Breaker.Timeout,
	}, logger)

	switch cfg.Queue.Backend {
	case "rabbitmq":
		q, err := queue.NewRabbitConsumptionQueue(cfg.Queue.RabbitURL, cfg.Queue.Key)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("очередь RabbitMQ: %w", err)
		}
		b.Queue = q
		b.closers = append(b.closers, func() { _ = q.Close() })
	case "", "redis":
		if b.Redis != nil {
			b.Queue = queue.NewRedisConsumptionQueue(b.Redis, cfg.Queue.Key)
		}
	default:
		b.Close()
		return nil, fmt.Errorf("неизвестный QUEUE_BACKEND %q", cfg.Queue.Backend)
	}
	return b, nil
}

// ScoreRetention возвращает срок хранения дневных скоров. Срок короче окна
// профиля поведения поднимается до минимума, иначе средний скор считается не по всему окну.
// 0 означает бессрочное хранение.
func ScoreRetention(cfg config.AppConfig, logger zerolog.Logger) time.Duration {
	minimum := profileConfig(cfg).MinScoreRetention()
	retention := cfg.ScoreCache.Retention
	if retention > 0 && retention < minimum {
		logger.Warn().
			Dur("configured", retention).
			Dur("minimum", minimum).
			Msg("app: SCORE_CACHE_RETENTION короче окна профиля, используем минимум")
		return minimum
	}
	return retention
}

func profileConfig(cfg config.AppConfig) behavior.Config {
	return behavior.Config{DismissWindow: cfg.Recommend.DismissWindow}
}

// Services объединяет сервисы поверх выбранных хранилищ.
type Services struct {
	Calculator *score.Service
	Cache      *scorecache.Service
	Profiler   *behavior.Profiler
	Recommend  *recommend.Service
	// Intake задан только в демо-режиме, где записи потребления живут в памяти.
	Intake *intake.Service
}

// NewServices связывает сервисы.
func NewServices(b *Backends, cfg config.AppConfig, clock domain.Clock, logger zerolog.Logger) *Services {
	calc := score.NewService(b.Events, b.Users, clock, logger.With().Str("component", "score").Logger())
	cacheSvc := scorecache.NewService(b.Scores, calc, clock, cfg.ScoreCache.TTL, logger)
	profiler := behavior.NewProfiler(b.Events, b.Users, cacheSvc, b.History, clock, profileConfig(cfg), logger)
	rcfg := recommend.DefaultConfig()
	rcfg.MaxActive = cfg.Recommend.MaxActive
	rcfg.Cooldown = cfg.Recommend.Cooldown
	rcfg.BatchSize = cfg.Recommend.BatchSize
	rcfg.QuietStart = cfg.Recommend.QuietStart
	rcfg.QuietEnd = cfg.Recommend.QuietEnd
	rcfg.Location = cfg.Location()
	svc := &Services{
		Calculator: calc,
		Cache:      cacheSvc,
		Profiler:   profiler,
		Recommend:  recommend.NewService(cacheSvc, profiler, b.Recs, clock, rcfg, logger),
	}
	if b.Memory != nil {
		svc.Intake = intake.NewService(b.Memory, b.Queue, clock, logger)
	}
	return svc
}
