package behavior

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/usecase/score"
)

const (
	defaultWindowDays    = 30
	defaultDismissDays   = 7
	topMealTimes         = 3
	topFoods             = 10
	defaultAcceptance    = 50.0
	consistencyWeight    = 0.4
	averageScoreWeight   = 0.3
	acceptanceRateWeight = 0.3
)

// Config задаёт окна профиля.
type Config struct {
	WindowDays    int
	DismissWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.WindowDays <= 0 {
		c.WindowDays = defaultWindowDays
	}
	if c.DismissWindow <= 0 {
		c.DismissWindow = defaultDismissDays * 24 * time.Hour
	}
	return c
}

// MinScoreRetention возвращает срок хранения дневных скоров, при котором
// в хранилище остаётся всё окно профиля плюс один день на разницу поясов.
func (c Config) MinScoreRetention() time.Duration {
	return time.Duration(c.withDefaults().WindowDays+1) * 24 * time.Hour
}

// ScoreHistory отдаёт сохранённые дневные скоры.
type ScoreHistory interface {
	ListScores(ctx context.Context, userID string, from, to time.Time) ([]domain.CachedScoreRecord, error)
}

// Profiler строит профиль поведения за скользящее окно.
type Profiler struct {
	events  domain.ConsumptionRepo
	users   domain.UserRepo
	scores  ScoreHistory
	history domain.RecommendationHistory
	clock   domain.Clock
	cfg     Config
	log     zerolog.Logger
}

// NewProfiler создаёт профайлер. history может быть nil: тогда рекомендаций нет.
func NewProfiler(events domain.ConsumptionRepo, users domain.UserRepo, scores ScoreHistory, history domain.RecommendationHistory, clock domain.Clock, cfg Config, logger zerolog.Logger) *Profiler {
	return &Profiler{
		events:  events,
		users:   users,
		scores:  scores,
		history: history,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		log:     logger.With().Str("component", "behavior").Logger(),
	}
}

// Profile пересчитывает профиль пользователя на текущий момент.
func (p *Profiler) Profile(ctx context.Context, userID string) (domain.UserBehaviorProfile, error) {
	now := p.clock.Now()

	profile := domain.UserBehaviorProfile{
		UserID:              userID,
		PreferredMealTimes:  []domain.MealTime{},
		FavoriteFoods:       []domain.FoodFrequency{},
		DietaryRestrictions: []string{},
		DismissedTypes:      []domain.RecommendationType{},
		AcceptanceRate:      defaultAcceptance,
	}

	loc := time.UTC
	user, err := p.users.GetUser(ctx, userID)
	switch {
	case err == nil:
		loc = score.ResolveLocation(user.Timezone)
		profile.DietaryRestrictions = append(profile.DietaryRestrictions, user.DietaryRestrictions...)
	case errors.Is(err, domain.ErrNotFound):
	default:
		return domain.UserBehaviorProfile{}, fmt.Errorf("получение пользователя: %w", err)
	}

	// Окно состоит ровно из WindowDays локальных дней, включая сегодняшний.
	today := score.LocalDay(now, loc)
	firstDay := today.AddDate(0, 0, -(p.cfg.WindowDays - 1))
	from, _ := score.DayBounds(firstDay, loc)

	events, err := p.events.ListEvents(ctx, userID, from, now)
	if err != nil {
		return domain.UserBehaviorProfile{}, fmt.Errorf("чтение журнала потребления: %w", err)
	}
	profile.PreferredMealTimes = preferredMealTimes(events)
	profile.FavoriteFoods = favoriteFoods(events)
	profile.ConsistencyPercent = consistency(events, loc, p.cfg.WindowDays)

	if p.scores != nil {
		records, err := p.scores.ListScores(ctx, userID, firstDay, today)
		if err != nil {
			p.log.Warn().Err(err).Str("user", userID).Msg("behavior: скоры недоступны, средний скор 0")
		} else {
			profile.AverageDailyScore = averageScore(records)
		}
	}

	p.applyHistory(ctx, &profile, now)
	profile.EngagementScore = Engagement(profile.ConsistencyPercent, profile.AverageDailyScore, profile.AcceptanceRate)
	return profile, nil
}

// applyHistory заполняет поля из журнала рекомендаций. Недоступный журнал
// означает «рекомендаций не было», а не ошибку.
func (p *Profiler) applyHistory(ctx context.Context, profile *domain.UserBehaviorProfile, now time.Time) {
	if p.history == nil {
		return
	}
	events, err := p.history.ListRecommendationEvents(ctx, profile.UserID, time.Time{})
	if err != nil {
		level := p.log.Warn()
		if errors.Is(err, domain.ErrRecommendationsDisabled) {
			level = p.log.Debug()
		}
		level.Err(err).Str("user", profile.UserID).Msg("behavior: журнал рекомендаций недоступен, используем значения по умолчанию")
		return
	}

	dismissedSince := now.Add(-p.cfg.DismissWindow)
	seenDismissed := make(map[domain.RecommendationType]struct{})
	for _, ev := range events {
		switch ev.Action {
		case domain.ActionIssued:
			profile.RecommendationsIssued++
			if profile.LastRecommendationAt == nil || ev.OccurredAt.After(*profile.LastRecommendationAt) {
				at := ev.OccurredAt
				profile.LastRecommendationAt = &at
			}
		case domain.ActionAccepted:
			profile.RecommendationsAccepted++
		case domain.ActionDismissed:
			if ev.OccurredAt.Before(dismissedSince) {
				continue
			}
			if _, ok := seenDismissed[ev.Type]; ok {
				continue
			}
			seenDismissed[ev.Type] = struct{}{}
			profile.DismissedTypes = append(profile.DismissedTypes, ev.Type)
		}
	}
	profile.AcceptanceRate = AcceptanceRate(profile.RecommendationsIssued, profile.RecommendationsAccepted)
}

// AcceptanceRate возвращает долю принятых рекомендаций в процентах, 50 без истории.
func AcceptanceRate(issued, accepted int) float64 {
	if issued <= 0 {
		return defaultAcceptance
	}
	return clamp(float64(accepted) / float64(issued) * 100)
}

// Engagement считает 0.4×регулярность + 0.3×средний скор + 0.3×принятие в пределах [0, 100].
func Engagement(consistency, averageScore, acceptance float64) float64 {
	return clamp(consistencyWeight*consistency + averageScoreWeight*averageScore + acceptanceRateWeight*acceptance)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func preferredMealTimes(events []domain.ConsumptionEvent) []domain.MealTime {
	counts := make(map[domain.MealTime]int)
	for _, ev := range events {
		if ev.MealTime.Valid() {
			counts[ev.MealTime]++
		}
	}
	meals := make([]domain.MealTime, 0, len(counts))
	for _, meal := range domain.MealTimes {
		if counts[meal] > 0 {
			meals = append(meals, meal)
		}
	}
	sort.SliceStable(meals, func(i, j int) bool {
		return counts[meals[i]] > counts[meals[j]]
	})
	if len(meals) > topMealTimes {
		meals = meals[:topMealTimes]
	}
	return meals
}

func favoriteFoods(events []domain.ConsumptionEvent) []domain.FoodFrequency {
	index := make(map[string]int)
	var out []domain.FoodFrequency
	for _, ev := range events {
		for _, food := range ev.Foods {
			name := strings.TrimSpace(food.Name)
			key := strings.ToLower(name)
			if key == "" {
				continue
			}
			if i, ok := index[key]; ok {
				out[i].Count++
				continue
			}
			index[key] = len(out)
			out = append(out, domain.FoodFrequency{Name: name, Count: 1})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > topFoods {
		out = out[:topFoods]
	}
	if out == nil {
		out = []domain.FoodFrequency{}
	}
	return out
}

func consistency(events []domain.ConsumptionEvent, loc *time.Location, windowDays int) float64 {
	days := make(map[string]struct{})
	for _, ev := range events {
		days[ev.ConsumedAt.In(loc).Format(time.DateOnly)] = struct{}{}
	}
	return clamp(float64(len(days)) / float64(windowDays) * 100)
}

func averageScore(records []domain.CachedScoreRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, rec := range records {
		sum += rec.OverallScore
	}
	return float64(sum) / float64(len(records))
}
