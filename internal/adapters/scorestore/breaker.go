package scorestore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

// BreakerConfig задаёт порог срабатывания и время до пробного запроса.
type BreakerConfig struct {
	Name     string
	Failures uint32
	Timeout  time.Duration
}

// Breaker оборачивает хранилище скоров предохранителем.
// При открытом предохранителе чтение отвечает промахом, а запись пропускается:
// кэш не должен ломать расчёт скора.
type Breaker struct {
	next domain.ScoreCacheRepo
	cb   *gobreaker.CircuitBreaker[any]
	name string
	log  zerolog.Logger
}

var _ domain.ScoreCacheRepo = (*Breaker)(nil)

// NewBreaker создаёт декоратор.
func NewBreaker(next domain.ScoreCacheRepo, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "score-store"
	}
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	b := &Breaker{next: next, name: cfg.Name, log: logger.With().Str("component", "score_breaker").Logger()}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("score store: предохранитель сменил состояние")
			metrics.ObserveBreakerTransition(name, from.String(), to.String(), stateValue(to))
		},
	})
	return b
}

// State возвращает текущее состояние предохранителя.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// GetScore при открытом предохранителе возвращает domain.ErrNotFound.
func (b *Breaker) GetScore(ctx context.Context, userID string, day time.Time) (domain.CachedScoreRecord, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.GetScore(ctx, userID, day)
	})
	if rejected(err) {
		return domain.CachedScoreRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CachedScoreRecord{}, err
	}
	return res.(domain.CachedScoreRecord), nil
}

// UpsertScore при открытом предохранителе пропускает запись.
func (b *Breaker) UpsertScore(ctx context.Context, record domain.CachedScoreRecord) error {
	return b.write("upsert", func() error { return b.next.UpsertScore(ctx, record) })
}

// DeleteScore не проходит через предохранитель.
func (b *Breaker) DeleteScore(ctx context.Context, userID string, day time.Time) error {
	return b.next.DeleteScore(ctx, userID, day)
}

// DeleteScores, как и DeleteScore, всегда идёт в хранилище.
func (b *Breaker) DeleteScores(ctx context.Context, userID string, days []time.Time) error {
	return b.next.DeleteScores(ctx, userID, days)
}

// ListScores при открытом предохранителе возвращает пустой список.
func (b *Breaker) ListScores(ctx context.Context, userID string, from, to time.Time) ([]domain.CachedScoreRecord, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.ListScores(ctx, userID, from, to)
	})
	if rejected(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res.([]domain.CachedScoreRecord), nil
}

func (b *Breaker) write(op string, fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if rejected(err) {
		b.log.Debug().Str("op", op).Msg("score store: запись пропущена, предохранитель открыт")
		return nil
	}
	return err
}
