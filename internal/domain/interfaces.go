package domain

import (
	"context"
	"time"
)

// Clock отдаёт текущее время; в тестах подменяется фиксированным.
type Clock interface {
	Now() time.Time
}

// UserRepo отдаёт профиль пользователя из внешнего хранилища.
type UserRepo interface {
	GetUser(ctx context.Context, userID string) (User, error)
}

// ConsumptionRepo читает журнал потребления.
type ConsumptionRepo interface {
	// ListEvents возвращает события с ConsumedAt в полуинтервале [from, to).
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]ConsumptionEvent, error)
}

// ScoreCacheRepo хранит посчитанные скоры по ключу (пользователь, день).
type ScoreCacheRepo interface {
	// GetScore возвращает ErrNotFound, если записи нет.
	GetScore(ctx context.Context, userID string, day time.Time) (CachedScoreRecord, error)
	UpsertScore(ctx context.Context, record CachedScoreRecord) error
	// DeleteScore идемпотентен: отсутствие записи не ошибка.
	DeleteScore(ctx context.Context, userID string, day time.Time) error
	DeleteScores(ctx context.Context, userID string, days []time.Time) error
	// ListScores возвращает записи с днём в отрезке [from, to].
	ListScores(ctx context.Context, userID string, from, to time.Time) ([]CachedScoreRecord, error)
}

// RecommendationRepo управляет рекомендациями.
type RecommendationRepo interface {
	// SaveRecommendations сохраняет пачку и пишет события issued в журнал.
	SaveRecommendations(ctx context.Context, recs []Recommendation) error
	// ListActive возвращает PENDING с expires_at > now.
	ListActive(ctx context.Context, userID string, now time.Time) ([]Recommendation, error)
	GetRecommendation(ctx context.Context, id string) (Recommendation, error)
	// TransitionRecommendation переводит PENDING в терминальный статус и пишет событие.
	TransitionRecommendation(ctx context.Context, id string, to RecommendationStatus, at time.Time) (Recommendation, error)
	IncrementViews(ctx context.Context, id string) (Recommendation, error)
}

// RecommendationHistory читает append-only журнал рекомендаций.
type RecommendationHistory interface {
	// ListRecommendationEvents возвращает события с OccurredAt >= since.
	ListRecommendationEvents(ctx context.Context, userID string, since time.Time) ([]RecommendationEvent, error)
}

// Capabilities перечисляет возможности хранилища, определяемые один раз при старте.
type Capabilities struct {
	Recommendations bool
}
