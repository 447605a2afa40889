package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"wellness-score/internal/domain"
)

// Store хранит все данные в памяти процесса. Используется в демо-режиме и тестах.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	events      map[string][]domain.ConsumptionEvent
	scores      map[string]domain.CachedScoreRecord
	recs        map[string]domain.Recommendation
	recOrder    []string
	history     map[string][]domain.RecommendationEvent
	nextEventID int64
}

var (
	_ domain.UserRepo              = (*Store)(nil)
	_ domain.ConsumptionRepo       = (*Store)(nil)
	_ domain.ScoreCacheRepo        = (*Store)(nil)
	_ domain.RecommendationRepo    = (*Store)(nil)
	_ domain.RecommendationHistory = (*Store)(nil)
)

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]domain.User),
		events:  make(map[string][]domain.ConsumptionEvent),
		scores:  make(map[string]domain.CachedScoreRecord),
		recs:    make(map[string]domain.Recommendation),
		history: make(map[string][]domain.RecommendationEvent),
	}
}

func scoreKey(userID string, day time.Time) string {
	return userID + "|" + day.UTC().Format(time.DateOnly)
}

// PutUser добавляет или заменяет пользователя.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// GetUser реализует domain.UserRepo.
func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

// AddEvent записывает событие потребления и возвращает его с идентификатором.
func (s *Store) AddEvent(ev domain.ConsumptionEvent) domain.ConsumptionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events[ev.UserID] = append(s.events[ev.UserID], ev)
	return ev
}

// ListEvents реализует domain.ConsumptionRepo.
func (s *Store) ListEvents(_ context.Context, userID string, from, to time.Time) ([]domain.ConsumptionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ConsumptionEvent
	for _, ev := range s.events[userID] {
		if ev.ConsumedAt.Before(from) || !ev.ConsumedAt.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConsumedAt.Before(out[j].ConsumedAt) })
	return out, nil
}

// GetScore реализует domain.ScoreCacheRepo.
func (s *Store) GetScore(_ context.Context, userID string, day time.Time) (domain.CachedScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.scores[scoreKey(userID, day)]
	if !ok {
		return domain.CachedScoreRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// UpsertScore реализует domain.ScoreCacheRepo.
func (s *Store) UpsertScore(_ context.Context, rec domain.CachedScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[scoreKey(rec.UserID, rec.Day)] = rec
	return nil
}

// DeleteScore реализует domain.ScoreCacheRepo.
func (s *Store) DeleteScore(_ context.Context, userID string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scores, scoreKey(userID, day))
	return nil
}

// DeleteScores реализует domain.ScoreCacheRepo.
func (s *Store) DeleteScores(_ context.Context, userID string, days []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, day := range days {
		delete(s.scores, scoreKey(userID, day))
	}
	return nil
}

// ListScores реализует domain.ScoreCacheRepo.
func (s *Store) ListScores(_ context.Context, userID string, from, to time.Time) ([]domain.CachedScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo, hi := from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly)
	var out []domain.CachedScoreRecord
	for _, rec := range s.scores {
		if rec.UserID != userID {
			continue
		}
		day := rec.Day.UTC().Format(time.DateOnly)
		if day < lo || day > hi {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// SaveRecommendations реализует domain.RecommendationRepo.
func (s *Store) SaveRecommendations(_ context.Context, recs []domain.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if _, exists := s.recs[rec.ID]; !exists {
			s.recOrder = append(s.recOrder, rec.ID)
		}
		s.recs[rec.ID] = rec
		s.history[rec.UserID] = append(s.history[rec.UserID], domain.RecommendationEvent{
			UserID:           rec.UserID,
			RecommendationID: rec.ID,
			Type:             rec.Type,
			Action:           domain.ActionIssued,
			OccurredAt:       rec.CreatedAt,
		})
	}
	return nil
}

// ListActive реализует domain.RecommendationRepo.
func (s *Store) ListActive(_ context.Context, userID string, now time.Time) ([]domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Recommendation, 0)
	for _, id := range s.recOrder {
		rec := s.recs[id]
		if rec.UserID != userID || rec.Status != domain.StatusPending || !rec.ExpiresAt.After(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetRecommendation реализует domain.RecommendationRepo.
func (s *Store) GetRecommendation(_ context.Context, id string) (domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	return rec, nil
}

// TransitionRecommendation реализует domain.RecommendationRepo.
func (s *Store) TransitionRecommendation(_ context.Context, id string, to domain.RecommendationStatus, at time.Time) (domain.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if rec.EffectiveStatus(at) != domain.StatusPending {
		return domain.Recommendation{}, domain.ErrInvalidTransition
	}
	var action domain.RecommendationAction
	switch to {
	case domain.StatusAccepted:
		action = domain.ActionAccepted
	case domain.StatusDismissed:
		action = domain.ActionDismissed
		rec.DismissCount++
	default:
		return domain.Recommendation{}, domain.ErrInvalidTransition
	}
	rec.Status = to
	s.recs[id] = rec
	s.history[rec.UserID] = append(s.history[rec.UserID], domain.RecommendationEvent{
		UserID:           rec.UserID,
		RecommendationID: rec.ID,
		Type:             rec.Type,
		Action:           action,
		OccurredAt:       at,
	})
	return rec, nil
}

// IncrementViews реализует domain.RecommendationRepo.
func (s *Store) IncrementViews(_ context.Context, id string) (domain.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	rec.ViewCount++
	s.recs[id] = rec
	return rec, nil
}

// ListRecommendationEvents реализует domain.RecommendationHistory.
func (s *Store) ListRecommendationEvents(_ context.Context, userID string, since time.Time) ([]domain.RecommendationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RecommendationEvent
	for _, ev := range s.history[userID] {
		if ev.OccurredAt.Before(since) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
