package scorecache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/retry"
)

const maxDeliveryAttempts = 5

// Worker читает уведомления о новых записях потребления и инвалидирует кэш.
type Worker struct {
	queue    domain.ConsumptionQueue
	cache    *Service
	log      zerolog.Logger
	policy   retry.Policy
	pause    time.Duration
	attempts map[string]int
}

// NewWorker создаёт обработчик очереди.
func NewWorker(queue domain.ConsumptionQueue, cache *Service, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		cache:    cache,
		log:      logger.With().Str("component", "invalidator").Logger(),
		policy:   retry.Default(),
		pause:    time.Second,
		attempts: make(map[string]int),
	}
}

// Run обрабатывает очередь до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		msg, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("invalidator: ошибка чтения очереди")
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		w.Handle(ctx, msg, ack)
	}
}

// Handle обрабатывает одно сообщение: успех и ошибка валидации подтверждаются,
// временная ошибка возвращает сообщение в очередь до maxDeliveryAttempts раз.
func (w *Worker) Handle(ctx context.Context, msg domain.ConsumptionLogged, ack domain.AckFunc) {
	msgLog := w.log.With().Str("user", msg.UserID).Time("logged_at", msg.LoggedAt).Logger()
	key := messageKey(msg)

	err := retry.Do(ctx, w.policy, msgLog, "invalidate", func() error {
		return w.cache.HandleConsumptionLogged(ctx, msg)
	})
	switch {
	case err == nil:
		delete(w.attempts, key)
		msgLog.Debug().Int("days", len(msg.Days())).Msg("invalidator: кэш инвалидирован")
		w.ack(msgLog, ack, true)
	case domain.IsValidation(err):
		delete(w.attempts, key)
		msgLog.Error().Err(err).Msg("invalidator: некорректное сообщение, подтверждаем и пропускаем")
		w.ack(msgLog, ack, true)
	case errors.Is(err, context.Canceled):
		w.ack(msgLog, ack, false)
	default:
		w.attempts[key]++
		attempt := w.attempts[key]
		if attempt < maxDeliveryAttempts {
			msgLog.Warn().Err(err).Int("attempt", attempt).Msg("invalidator: не удалось инвалидировать, повторим позже")
			w.ack(msgLog, ack, false)
			w.sleep(ctx)
			return
		}
		delete(w.attempts, key)
		msgLog.Error().Err(err).Int("attempt", attempt).Msg("invalidator: достигнут предел попыток, сообщение отброшено")
		w.ack(msgLog, ack, true)
	}
}

func (w *Worker) ack(logger zerolog.Logger, ack domain.AckFunc, success bool) {
	if ack == nil {
		return
	}
	if err := ack(success); err != nil {
		logger.Error().Err(err).Bool("success", success).Msg("invalidator: не удалось подтвердить сообщение")
	}
}

func (w *Worker) sleep(ctx context.Context) bool {
	if w.pause <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(w.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func messageKey(msg domain.ConsumptionLogged) string {
	parts := []string{msg.UserID, msg.LoggedAt.UTC().Format(time.RFC3339Nano)}
	for _, d := range msg.Days() {
		parts = append(parts, d.Format(time.DateOnly))
	}
	return strings.Join(parts, "|")
}

// Pruner удаляет записи кэша старше срока хранения.
type Pruner interface {
	PruneScores(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}

// Prune удаляет устаревшие записи кэша и пишет итог в лог.
func Prune(ctx context.Context, p Pruner, retention time.Duration, clock domain.Clock, logger zerolog.Logger) {
	if p == nil || retention <= 0 {
		return
	}
	n, err := p.PruneScores(ctx, retention, clock.Now())
	if err != nil {
		logger.Error().Err(err).Msg("invalidator: не удалось очистить кэш скоров")
		return
	}
	logger.Info().Int64("deleted", n).Dur("retention", retention).Msg("invalidator: кэш скоров очищен")
}
