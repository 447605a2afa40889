package scorecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
	"wellness-score/internal/infra/retry"
	"wellness-score/internal/infra/validation"
	"wellness-score/internal/usecase/score"
)

// DefaultTTL задаёт окно, в течение которого посчитанный скор переиспользуется.
const DefaultTTL = 60 * time.Minute

// Calculator считает скор за день.
type Calculator interface {
	Calculate(ctx context.Context, userID string, day time.Time) (domain.Score5x5x5, error)
}

// Request описывает запрос скора за день. Date в формате YYYY-MM-DD.
type Request struct {
	UserID string `validate:"required,uuid"`
	Date   string `validate:"required,datetime=2006-01-02"`
}

// Result описывает типизированный результат чтения. При ошибке Score == nil,
// вызывающая сторона показывает score.Zero.
type Result struct {
	Score  *domain.Score5x5x5
	Err    error
	Cached bool
}

// Service реализует get-or-calculate поверх хранилища скоров.
type Service struct {
	store  domain.ScoreCacheRepo
	calc   Calculator
	clock  domain.Clock
	ttl    time.Duration
	policy retry.Policy
	log    zerolog.Logger
}

// NewService создаёт сервис кэша. ttl <= 0 означает DefaultTTL.
func NewService(store domain.ScoreCacheRepo, calc Calculator, clock domain.Clock, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:  store,
		calc:   calc,
		clock:  clock,
		ttl:    ttl,
		policy: retry.Default(),
		log:    logger.With().Str("component", "scorecache").Logger(),
	}
}

// WithRetryPolicy заменяет политику повторов.
func (s *Service) WithRetryPolicy(p retry.Policy) *Service {
	s.policy = p
	return s
}

// Get возвращает скор за день и никогда не возвращает ошибку напрямую.
// Ошибки валидации не повторяются, временные сбои повторяются по политике.
func (s *Service) Get(ctx context.Context, req Request) Result {
	if err := validation.Struct(req); err != nil {
		return Result{Err: err}
	}
	day, err := score.ParseDate(req.Date)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %q", domain.ErrInvalidDate, req.Date)}
	}

	var (
		result domain.Score5x5x5
		cached bool
	)
	err = retry.Do(ctx, s.policy, s.log, "score_get", func() error {
		var callErr error
		result, cached, callErr = s.GetOrCalculate(ctx, req.UserID, day)
		return callErr
	})
	if err != nil {
		s.log.Error().Err(err).Str("user", req.UserID).Str("date", req.Date).Msg("scorecache: не удалось получить скор")
		return Result{Err: err}
	}
	return Result{Score: &result, Cached: cached}
}

// GetOrCalculate отдаёт свежую запись кэша либо считает скор и сохраняет его.
// Скор из кэша восстановлен с потерями: списков продуктов в нём нет.
func (s *Service) GetOrCalculate(ctx context.Context, userID string, day time.Time) (domain.Score5x5x5, bool, error) {
	day = score.CanonicalDay(day)
	now := s.clock.Now()

	rec, err := s.store.GetScore(ctx, userID, day)
	switch {
	case err == nil:
		if now.Sub(rec.CreatedAt) < s.ttl {
			metrics.IncCacheLookup("hit")
			return score.FromRecord(rec), true, nil
		}
		metrics.IncCacheLookup("miss")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncCacheLookup("miss")
	default:
		metrics.IncCacheLookup("error")
		s.log.Warn().Err(err).Str("user", userID).Msg("scorecache: чтение кэша не удалось, считаем заново")
	}

	fresh, err := s.calc.Calculate(ctx, userID, day)
	if err != nil {
		return domain.Score5x5x5{}, false, fmt.Errorf("расчёт скора: %w", err)
	}
	if err := s.store.UpsertScore(ctx, score.Flatten(fresh, now)); err != nil {
		s.log.Error().Err(err).Str("user", userID).Str("date", day.Format(time.DateOnly)).Msg("scorecache: не удалось сохранить скор")
	}
	return fresh, false, nil
}

// Invalidate удаляет запись за день. Отсутствие записи не ошибка.
func (s *Service) Invalidate(ctx context.Context, userID string, day time.Time) error {
	if err := validation.UserID(userID); err != nil {
		return err
	}
	if err := s.store.DeleteScore(ctx, userID, score.CanonicalDay(day)); err != nil {
		return fmt.Errorf("инвалидация скора: %w", err)
	}
	metrics.AddCacheInvalidations(1)
	return nil
}

// InvalidateDays удаляет записи за несколько дней одной операцией.
func (s *Service) InvalidateDays(ctx context.Context, userID string, days []time.Time) error {
	if err := validation.UserID(userID); err != nil {
		return err
	}
	keys := uniqueDays(days)
	if len(keys) == 0 {
		return nil
	}
	if err := s.store.DeleteScores(ctx, userID, keys); err != nil {
		return fmt.Errorf("пакетная инвалидация скоров: %w", err)
	}
	metrics.AddCacheInvalidations(len(keys))
	return nil
}

// HandleConsumptionLogged инвалидирует дни из уведомления о новой записи потребления.
func (s *Service) HandleConsumptionLogged(ctx context.Context, msg domain.ConsumptionLogged) error {
	days := msg.Days()
	if len(days) == 0 {
		return fmt.Errorf("%w: message without dates", domain.ErrInvalidDate)
	}
	return s.InvalidateDays(ctx, msg.UserID, days)
}

// ListScores возвращает записи кэша за отрезок дней включительно.
func (s *Service) ListScores(ctx context.Context, userID string, from, to time.Time) ([]domain.CachedScoreRecord, error) {
	return s.store.ListScores(ctx, userID, score.CanonicalDay(from), score.CanonicalDay(to))
}

func uniqueDays(days []time.Time) []time.Time {
	seen := make(map[string]struct{}, len(days))
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		canonical := score.CanonicalDay(d)
		key := canonical.Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, canonical)
	}
	return out
}
