package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
)

// Policy задаёт экспоненциальные повторы.
type Policy struct {
	Initial    time.Duration
	Multiplier float64
	Attempts   int
}

// Default: 100мс, удвоение, до трёх попыток.
func Default() Policy {
	return Policy{Initial: 100 * time.Millisecond, Multiplier: 2, Attempts: 3}
}

// Do выполняет fn с повторами. Ошибки валидации, неверный собранный скор
// и отмена контекста не повторяются.
func Do(ctx context.Context, p Policy, logger zerolog.Logger, op string, fn func() error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.Attempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if domain.IsValidation(err) || errors.Is(err, domain.ErrInvalidScore) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("retry: временная ошибка, повторяем")
	})
}
