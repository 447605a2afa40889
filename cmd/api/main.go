package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"wellness-score/internal/adapters/httpapi"
	"wellness-score/internal/app"
	"wellness-score/internal/infra/clock"
	"wellness-score/internal/infra/config"
	httpinfra "wellness-score/internal/infra/http"
	applog "wellness-score/internal/infra/log"
	"wellness-score/internal/infra/metrics"
	"wellness-score/internal/usecase/scorecache"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось подключить хранилища")
	}
	defer backends.Close()

	clk := clock.Real{}
	services := app.NewServices(backends, cfg, clk, logger)

	if backends.Memory != nil {
		// В демо-режиме записи приходят через intake, а очередь живёт в памяти процесса.
		go scorecache.NewWorker(backends.Queue, services.Cache, logger).Run(ctx)
	}

	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)
	}

	server := httpinfra.NewServer(applog.Component(logger, "http"))
	handler := httpapi.NewHandler(services.Cache, services.Profiler, services.Recommend, clk, cfg.Location(), logger)
	if services.Intake != nil {
		handler.WithIntake(services.Intake)
	}
	handler.Register(server.Router)

	go func() {
		logger.Info().Str("env", cfg.AppEnv).Msg("api: старт")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка при остановке сервера")
	}
}
