package repo

import (
	"context"
	"time"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

// ProbeCapabilities проверяет один раз при старте, развёрнута ли схема рекомендаций.
func (p *Postgres) ProbeCapabilities(ctx context.Context) (domain.Capabilities, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var caps domain.Capabilities
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT to_regclass('public.recommendations') IS NOT NULL
   AND to_regclass('public.recommendation_events') IS NOT NULL
`).Scan(&caps.Recommendations)
	metrics.ObserveNetworkRequest("postgres", "capabilities_probe", "pg_catalog", start, err)
	if err != nil {
		return domain.Capabilities{}, err
	}
	return caps, nil
}

// DisabledRecommendations заменяет хранилище рекомендаций, когда схема не развёрнута:
// чтения возвращают пустые результаты, записи возвращают ErrRecommendationsDisabled.
type DisabledRecommendations struct{}

var (
	_ domain.RecommendationRepo    = DisabledRecommendations{}
	_ domain.RecommendationHistory = DisabledRecommendations{}
)

// SaveRecommendations реализует domain.RecommendationRepo.
func (DisabledRecommendations) SaveRecommendations(context.Context, []domain.Recommendation) error {
	return domain.ErrRecommendationsDisabled
}

// ListActive реализует domain.RecommendationRepo.
func (DisabledRecommendations) ListActive(context.Context, string, time.Time) ([]domain.Recommendation, error) {
	return []domain.Recommendation{}, nil
}

// GetRecommendation реализует domain.RecommendationRepo.
func (DisabledRecommendations) GetRecommendation(context.Context, string) (domain.Recommendation, error) {
	return domain.Recommendation{}, domain.ErrNotFound
}

// TransitionRecommendation реализует domain.RecommendationRepo.
func (DisabledRecommendations) TransitionRecommendation(context.Context, string, domain.RecommendationStatus, time.Time) (domain.Recommendation, error) {
	return domain.Recommendation{}, domain.ErrRecommendationsDisabled
}

// IncrementViews реализует domain.RecommendationRepo.
func (DisabledRecommendations) IncrementViews(context.Context, string) (domain.Recommendation, error) {
	return domain.Recommendation{}, domain.ErrRecommendationsDisabled
}

// ListRecommendationEvents реализует domain.RecommendationHistory.
func (DisabledRecommendations) ListRecommendationEvents(context.Context, string, time.Time) ([]domain.RecommendationEvent, error) {
	return []domain.RecommendationEvent{}, nil
}

// RecommendationStores выбирает хранилище рекомендаций по результату проверки схемы.
func RecommendationStores(p *Postgres, caps domain.Capabilities) (domain.RecommendationRepo, domain.RecommendationHistory) {
	if !caps.Recommendations {
		return DisabledRecommendations{}, DisabledRecommendations{}
	}
	return p, p
}
