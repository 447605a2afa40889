package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	registerOnce sync.Once

	ScoreCalculations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "score_calculations_total",
		Help: "Количество расчётов дневного скора",
	}, []string{"status"})

	ScoreCalculationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "score_calculation_seconds",
		Help:    "Время расчёта дневного скора, включая чтение журнала потребления",
		Buckets: prometheus.DefBuckets,
	})

	ScoreCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "score_cache_lookups_total",
		Help: "Обращения к кэшу скоров",
	}, []string{"result"})

	ScoreCacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "score_cache_invalidations_total",
		Help: "Количество инвалидированных дней в кэше скоров",
	})

	RecommendationsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendations_generated_total",
		Help: "Созданные рекомендации",
	}, []string{"type", "priority"})

	RecommendationSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_suppressed_total",
		Help: "Подавленные запуски или шаги генерации рекомендаций",
	}, []string{"reason"})

	RecommendationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_transitions_total",
		Help: "Переходы статусов рекомендаций",
	}, []string{"status"})

	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Состояние предохранителя: 0 closed, 1 half-open, 2 open",
	}, []string{"name"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_transitions_total",
		Help: "Переходы предохранителя между состояниями",
	}, []string{"name", "from", "to"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			ScoreCalculations,
			ScoreCalculationSeconds,
			ScoreCacheLookups,
			ScoreCacheInvalidations,
			RecommendationsGenerated,
			RecommendationSuppressed,
			RecommendationTransitions,
			BreakerState,
			BreakerTransitions,
			NetworkRequestDuration,
			NetworkRequestTotal,
		)
	})
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveScoreCalculation фиксирует расчёт скора.
func ObserveScoreCalculation(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ScoreCalculations.WithLabelValues(status).Inc()
	ScoreCalculationSeconds.Observe(time.Since(start).Seconds())
}

// IncCacheLookup увеличивает счётчик обращений к кэшу: hit, miss или error.
func IncCacheLookup(result string) {
	ScoreCacheLookups.WithLabelValues(result).Inc()
}

// AddCacheInvalidations учитывает инвалидированные дни.
func AddCacheInvalidations(n int) {
	if n > 0 {
		ScoreCacheInvalidations.Add(float64(n))
	}
}

// IncRecommendation учитывает созданную рекомендацию.
func IncRecommendation(recType, priority string) {
	RecommendationsGenerated.WithLabelValues(recType, priority).Inc()
}

// IncSuppressed учитывает подавление генерации.
func IncSuppressed(reason string) {
	RecommendationSuppressed.WithLabelValues(reason).Inc()
}

// IncTransition учитывает смену статуса рекомендации.
func IncTransition(status string) {
	RecommendationTransitions.WithLabelValues(status).Inc()
}

// ObserveBreakerTransition фиксирует смену состояния предохранителя.
func ObserveBreakerTransition(name, from, to string, state float64) {
	BreakerState.WithLabelValues(name).Set(state)
	BreakerTransitions.WithLabelValues(name, from, to).Inc()
}
