package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"wellness-score/internal/app"
	"wellness-score/internal/infra/cache"
	"wellness-score/internal/infra/clock"
	"wellness-score/internal/infra/config"
	applog "wellness-score/internal/infra/log"
	"wellness-score/internal/infra/metrics"
	"wellness-score/internal/usecase/scorecache"
)

const (
	pruneInterval = time.Hour
	pruneLockKey  = "score_prune_lock"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AppEnv == app.EnvDemo {
		logger.Fatal().Msg("invalidator: в демо-режиме очередь обрабатывает api")
	}

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalidator: не удалось подключить хранилища")
	}
	defer backends.Close()
	if backends.Queue == nil {
		logger.Fatal().Msg("invalidator: не настроена очередь (REDIS_ADDR или QUEUE_BACKEND=rabbitmq)")
	}

	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)
	}

	clk := clock.Real{}
	services := app.NewServices(backends, cfg, clk, logger)

	if backends.Pruner != nil {
		go pruneLoop(ctx, backends, app.ScoreRetention(cfg, logger), clk, applog.Component(logger, "pruner"))
	}

	logger.Info().Str("queue", cfg.Queue.Backend).Msg("invalidator: запуск обработки очереди")
	scorecache.NewWorker(backends.Queue, services.Cache, logger).Run(ctx)
	logger.Info().Msg("invalidator: остановлен")
}

// pruneLoop раз в час удаляет устаревшие скоры. При нескольких репликах
// очистку выполняет та, что первой взяла блокировку в Redis.
func pruneLoop(ctx context.Context, b *app.Backends, retention time.Duration, clk clock.Real, logger zerolog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		prune := func() error {
			scorecache.Prune(ctx, b.Pruner, retention, clk, logger)
			return nil
		}
		if b.Redis != nil {
			if _, err := cache.Once(ctx, b.Redis, pruneLockKey, pruneInterval-time.Minute, prune); err != nil {
				logger.Error().Err(err).Msg("pruner: не удалось взять блокировку")
			}
		} else {
			_ = prune()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
