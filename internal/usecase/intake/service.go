// Package intake принимает записи потребления в демо-режиме и уведомляет
// обработчик кэша о затронутом дне.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/validation"
	"wellness-score/internal/usecase/score"
)

// EventWriter записывает событие потребления.
type EventWriter interface {
	AddEvent(ev domain.ConsumptionEvent) domain.ConsumptionEvent
}

// UserWriter сохраняет профиль пользователя.
type UserWriter interface {
	PutUser(user domain.User)
}

// FoodInput описывает продукт во входящей записи.
type FoodInput struct {
	Name    string   `json:"name" validate:"required,max=200"`
	Systems []string `json:"systems" validate:"max=5"`
}

// ConsumptionRequest описывает входящую запись о приёме пищи.
// Пустой ConsumedAt означает текущий момент.
type ConsumptionRequest struct {
	UserID     string      `json:"-" validate:"required,uuid"`
	ConsumedAt time.Time   `json:"consumedAt"`
	MealTime   string      `json:"mealTime" validate:"omitempty,max=32"`
	Foods      []FoodInput `json:"foods" validate:"required,min=1,max=50,dive"`
}

// UserRequest описывает профиль пользователя.
type UserRequest struct {
	UserID              string   `json:"-" validate:"required,uuid"`
	Timezone            string   `json:"timezone" validate:"omitempty,timezone"`
	DietaryRestrictions []string `json:"dietaryRestrictions" validate:"max=20,dive,required"`
}

// Store объединяет запись событий и пользователей с чтением пользователей.
type Store interface {
	EventWriter
	UserWriter
	domain.UserRepo
}

// Service пишет события в хранилище и ставит уведомление в очередь.
type Service struct {
	store Store
	queue domain.ConsumptionQueue
	clock domain.Clock
	log   zerolog.Logger
}

// NewService создаёт сервис приёма записей.
func NewService(store Store, queue domain.ConsumptionQueue, clock domain.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store: store,
		queue: queue,
		clock: clock,
		log:   logger.With().Str("component", "intake").Logger(),
	}
}

// LogConsumption сохраняет запись и отправляет ConsumptionLogged за локальный день пользователя.
// Ошибка постановки в очередь не отменяет запись: кэш устареет не дольше TTL.
func (s *Service) LogConsumption(ctx context.Context, req ConsumptionRequest) (domain.ConsumptionEvent, error) {
	if err := validation.Struct(req); err != nil {
		return domain.ConsumptionEvent{}, err
	}
	ev, err := buildEvent(req, s.clock.Now())
	if err != nil {
		return domain.ConsumptionEvent{}, err
	}

	loc, err := s.location(ctx, req.UserID)
	if err != nil {
		return domain.ConsumptionEvent{}, err
	}
	ev = s.store.AddEvent(ev)

	msg := domain.ConsumptionLogged{
		UserID:   ev.UserID,
		Date:     score.LocalDay(ev.ConsumedAt, loc).Format(time.DateOnly),
		LoggedAt: s.clock.Now(),
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, msg); err != nil {
			s.log.Error().Err(err).Str("user", ev.UserID).Str("date", msg.Date).Msg("intake: не удалось поставить уведомление в очередь")
		}
	}
	s.log.Debug().Str("user", ev.UserID).Str("date", msg.Date).Int("foods", len(ev.Foods)).Msg("intake: запись сохранена")
	return ev, nil
}

// SaveUser создаёт или заменяет профиль пользователя.
func (s *Service) SaveUser(_ context.Context, req UserRequest) (domain.User, error) {
	if err := validation.Struct(req); err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:                  req.UserID,
		Timezone:            strings.TrimSpace(req.Timezone),
		DietaryRestrictions: append([]string{}, req.DietaryRestrictions...),
		CreatedAt:           s.clock.Now(),
	}
	s.store.PutUser(user)
	return user, nil
}

func (s *Service) location(ctx context.Context, userID string) (*time.Location, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return time.UTC, nil
	}
	if err != nil {
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return score.ResolveLocation(user.Timezone), nil
}

func buildEvent(req ConsumptionRequest, now time.Time) (domain.ConsumptionEvent, error) {
	ev := domain.ConsumptionEvent{UserID: req.UserID, ConsumedAt: req.ConsumedAt.UTC()}
	if req.ConsumedAt.IsZero() {
		ev.ConsumedAt = now
	}
	if raw := strings.TrimSpace(req.MealTime); raw != "" {
		meal, ok := domain.ParseMealTime(raw)
		if !ok {
			return domain.ConsumptionEvent{}, fmt.Errorf("%w: unknown meal time %q", domain.ErrValidation, raw)
		}
		ev.MealTime = meal
	}
	for _, in := range req.Foods {
		item := domain.FoodItem{Name: strings.TrimSpace(in.Name)}
		for _, raw := range in.Systems {
			system, ok := domain.ParseDefenseSystem(raw)
			if !ok {
				return domain.ConsumptionEvent{}, fmt.Errorf("%w: unknown defense system %q", domain.ErrValidation, raw)
			}
			item.Systems = append(item.Systems, system)
		}
		ev.Foods = append(ev.Foods, item)
	}
	return ev, nil
}
