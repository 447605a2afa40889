package score

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

// Service читает журнал потребления и считает скор за день.
type Service struct {
	events domain.ConsumptionRepo
	users  domain.UserRepo
	clock  domain.Clock
	log    zerolog.Logger
}

// NewService создаёт сервис расчёта.
func NewService(events domain.ConsumptionRepo, users domain.UserRepo, clock domain.Clock, logger zerolog.Logger) *Service {
	return &Service{events: events, users: users, clock: clock, log: logger}
}

// Calculate считает скор пользователя за календарный день в его часовом поясе.
func (s *Service) Calculate(ctx context.Context, userID string, day time.Time) (domain.Score5x5x5, error) {
	start := time.Now()
	result, err := s.calculate(ctx, userID, day)
	metrics.ObserveScoreCalculation(start, err)
	return result, err
}

func (s *Service) calculate(ctx context.Context, userID string, day time.Time) (domain.Score5x5x5, error) {
	loc, err := s.Location(ctx, userID)
	if err != nil {
		return domain.Score5x5x5{}, err
	}
	from, to := DayBounds(day, loc)
	events, err := s.events.ListEvents(ctx, userID, from, to)
	if err != nil {
		return domain.Score5x5x5{}, fmt.Errorf("чтение журнала потребления: %w", err)
	}
	result := Calculate(userID, CanonicalDay(day), events)
	result.CalculatedAt = s.clock.Now()
	if err := Validate(result); err != nil {
		return domain.Score5x5x5{}, err
	}
	s.log.Debug().
		Str("user", userID).
		Str("date", result.Date.Format(time.DateOnly)).
		Int("events", len(events)).
		Int("overall", result.OverallScore).
		Msg("score: рассчитан")
	return result, nil
}

// Location возвращает часовой пояс пользователя. Для неизвестного пользователя или пояса возвращается UTC.
func (s *Service) Location(ctx context.Context, userID string) (*time.Location, error) {
	if s.users == nil {
		return time.UTC, nil
	}
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return time.UTC, nil
	}
	if err != nil {
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return ResolveLocation(user.Timezone), nil
}
