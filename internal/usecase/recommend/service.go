package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
	"wellness-score/internal/infra/validation"
	"wellness-score/internal/usecase/gaps"
	"wellness-score/internal/usecase/score"
)

// Config задаёт правила троттлинга и размер пачки.
type Config struct {
	MaxActive     int
	Cooldown      time.Duration
	BatchSize     int
	LowAcceptance float64
	CriticalScore int
	QuietStart    int
	QuietEnd      int
	Location      *time.Location
}

// DefaultConfig: 3 активных, пауза 4 часа, пачка до 3, тихие часы выключены.
func DefaultConfig() Config {
	return Config{
		MaxActive:     3,
		Cooldown:      4 * time.Hour,
		BatchSize:     3,
		LowAcceptance: 20,
		CriticalScore: 40,
		Location:      time.UTC,
	}
}

// ScoreSource отдаёт скор за день, обычно через кэш.
type ScoreSource interface {
	GetOrCalculate(ctx context.Context, userID string, day time.Time) (domain.Score5x5x5, bool, error)
}

// ProfileSource строит профиль поведения.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (domain.UserBehaviorProfile, error)
}

// Service генерирует рекомендации и управляет их жизненным циклом.
type Service struct {
	scores   ScoreSource
	profiles ProfileSource
	repo     domain.RecommendationRepo
	clock    domain.Clock
	cfg      Config
	log      zerolog.Logger
}

// NewService создаёт движок рекомендаций.
func NewService(scores ScoreSource, profiles ProfileSource, repo domain.RecommendationRepo, clock domain.Clock, cfg Config, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = def.MaxActive
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LowAcceptance <= 0 {
		cfg.LowAcceptance = def.LowAcceptance
	}
	if cfg.CriticalScore <= 0 {
		cfg.CriticalScore = def.CriticalScore
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		scores:   scores,
		profiles: profiles,
		repo:     repo,
		clock:    clock,
		cfg:      cfg,
		log:      logger.With().Str("component", "recommend").Logger(),
	}
}

// Generate считает скор за день и решает, что рекомендовать.
func (s *Service) Generate(ctx context.Context, userID string, day time.Time) ([]domain.Recommendation, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	current, _, err := s.scores.GetOrCalculate(ctx, userID, score.CanonicalDay(day))
	if err != nil {
		return nil, fmt.Errorf("получение скора: %w", err)
	}
	return s.GenerateForScore(ctx, userID, current)
}

// GenerateForScore применяет проверки и лестницу генерации к готовому скору.
// Пустой результат означает, что генерация подавлена.
func (s *Service) GenerateForScore(ctx context.Context, userID string, current domain.Score5x5x5) ([]domain.Recommendation, error) {
	now := s.clock.Now()
	analysis := gaps.Analyze(current)

	profile, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("профиль пользователя: %w", err)
	}
	active, err := s.activeFor(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	logger := s.log.With().Str("user", userID).Int("overall", analysis.OverallScore).Logger()
	decision := Eligibility(analysis, profile, len(active), now, s.cfg)
	if !decision.Allowed {
		metrics.IncSuppressed(decision.Reason)
		logger.Debug().Str("reason", decision.Reason).Int("active", len(active)).Msg("recommend: генерация подавлена")
		return []domain.Recommendation{}, nil
	}

	batch := Plan(userID, analysis, profile, now, s.cfg.BatchSize, decision.CriticalOnly)
	if len(batch) == 0 {
		logger.Debug().Str("reason", decision.Reason).Msg("recommend: подходящих шагов нет")
		return batch, nil
	}
	if err := s.repo.SaveRecommendations(ctx, batch); err != nil {
		if !errors.Is(err, domain.ErrRecommendationsDisabled) {
			return nil, fmt.Errorf("сохранение рекомендаций: %w", err)
		}
		logger.Warn().Err(err).Msg("recommend: хранилище рекомендаций не развёрнуто, пачка не сохранена")
	}
	for _, rec := range batch {
		metrics.IncRecommendation(string(rec.Type), string(rec.Priority))
	}
	logger.Info().Str("reason", decision.Reason).Int("count", len(batch)).Msg("recommend: рекомендации созданы")
	return batch, nil
}

// ListActive возвращает PENDING рекомендации с неистёкшим сроком.
func (s *Service) ListActive(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	if err := validation.UserID(userID); err != nil {
		return nil, err
	}
	return s.activeFor(ctx, userID, s.clock.Now())
}

// Accept переводит рекомендацию в ACCEPTED.
func (s *Service) Accept(ctx context.Context, id string) (domain.Recommendation, error) {
	return s.transition(ctx, id, domain.StatusAccepted)
}

// Dismiss переводит рекомендацию в DISMISSED и увеличивает счётчик отклонений.
func (s *Service) Dismiss(ctx context.Context, id string) (domain.Recommendation, error) {
	return s.transition(ctx, id, domain.StatusDismissed)
}

// MarkViewed увеличивает счётчик просмотров.
func (s *Service) MarkViewed(ctx context.Context, id string) (domain.Recommendation, error) {
	if err := validation.Get().Var(id, "required,uuid"); err != nil {
		return domain.Recommendation{}, fmt.Errorf("%w: invalid recommendation id %q", domain.ErrValidation, id)
	}
	rec, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("просмотр рекомендации: %w", err)
	}
	return rec, nil
}

func (s *Service) transition(ctx context.Context, id string, to domain.RecommendationStatus) (domain.Recommendation, error) {
	if err := validation.Get().Var(id, "required,uuid"); err != nil {
		return domain.Recommendation{}, fmt.Errorf("%w: invalid recommendation id %q", domain.ErrValidation, id)
	}
	now := s.clock.Now()
	current, err := s.repo.GetRecommendation(ctx, id)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("получение рекомендации: %w", err)
	}
	if status := current.EffectiveStatus(now); status != domain.StatusPending {
		return domain.Recommendation{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, status, to)
	}
	rec, err := s.repo.TransitionRecommendation(ctx, id, to, now)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("смена статуса рекомендации: %w", err)
	}
	metrics.IncTransition(string(to))
	s.log.Info().Str("user", rec.UserID).Str("id", id).Str("status", string(to)).Msg("recommend: статус изменён")
	return rec, nil
}

func (s *Service) activeFor(ctx context.Context, userID string, now time.Time) ([]domain.Recommendation, error) {
	active, err := s.repo.ListActive(ctx, userID, now)
	if errors.Is(err, domain.ErrRecommendationsDisabled) {
		return []domain.Recommendation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("активные рекомендации: %w", err)
	}
	return active, nil
}
