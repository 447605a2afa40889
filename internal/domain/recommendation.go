package domain

import "time"

// RecommendationType описывает вид рекомендации.
type RecommendationType string

const (
	RecommendationRecipe         RecommendationType = "RECIPE"
	RecommendationMealPlan       RecommendationType = "MEAL_PLAN"
	RecommendationFoodSuggestion RecommendationType = "FOOD_SUGGESTION"
	RecommendationWorkflowStep   RecommendationType = "WORKFLOW_STEP"
)

// RecommendationPriority описывает срочность рекомендации.
type RecommendationPriority string

const (
	PriorityCritical RecommendationPriority = "CRITICAL"
	PriorityHigh     RecommendationPriority = "HIGH"
	PriorityMedium   RecommendationPriority = "MEDIUM"
	PriorityLow      RecommendationPriority = "LOW"
)

// RecommendationStatus описывает жизненный цикл рекомендации.
// PENDING переходит в один из терминальных статусов и больше не меняется.
type RecommendationStatus string

const (
	StatusPending   RecommendationStatus = "PENDING"
	StatusAccepted  RecommendationStatus = "ACCEPTED"
	StatusDismissed RecommendationStatus = "DISMISSED"
	StatusExpired   RecommendationStatus = "EXPIRED"
)

// Terminal сообщает, что из статуса нет переходов.
func (s RecommendationStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusDismissed || s == StatusExpired
}

// Recommendation описывает рекомендацию, созданную движком.
type Recommendation struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"userId"`
	Type           RecommendationType     `json:"type"`
	Priority       RecommendationPriority `json:"priority"`
	Status         RecommendationStatus   `json:"status"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Reasoning      string                 `json:"reasoning"`
	ActionLabel    string                 `json:"actionLabel"`
	ActionURL      string                 `json:"actionUrl"`
	ActionData     map[string]any         `json:"actionData"`
	TargetSystem   *DefenseSystem         `json:"targetSystem,omitempty"`
	TargetMealTime *MealTime              `json:"targetMealTime,omitempty"`
	ExpiresAt      time.Time              `json:"expiresAt"`
	CreatedAt      time.Time              `json:"createdAt"`
	ViewCount      int                    `json:"viewCount"`
	DismissCount   int                    `json:"dismissCount"`
}

// EffectiveStatus учитывает истечение срока: просроченная PENDING считается EXPIRED.
func (r Recommendation) EffectiveStatus(now time.Time) RecommendationStatus {
	if r.Status == StatusPending && !now.Before(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}

// RecommendationAction задаёт тип события в журнале рекомендаций.
type RecommendationAction string

const (
	ActionIssued    RecommendationAction = "issued"
	ActionAccepted  RecommendationAction = "accepted"
	ActionDismissed RecommendationAction = "dismissed"
)

// RecommendationEvent описывает запись append-only журнала с ключом (пользователь, время).
type RecommendationEvent struct {
	UserID           string
	RecommendationID string
	Type             RecommendationType
	Action           RecommendationAction
	OccurredAt       time.Time
}

// GapKind описывает вид дефицита.
type GapKind string

const (
	GapMissingSystem GapKind = "missing_system"
	GapWeakSystem    GapKind = "weak_system"
	GapMissedMeal    GapKind = "missed_meal"
	GapLowVariety    GapKind = "low_variety"
)

// Gap описывает найденный дефицит с приоритетом для сортировки.
type Gap struct {
	Kind          GapKind       `json:"kind"`
	System        DefenseSystem `json:"system,omitempty"`
	MealTime      MealTime      `json:"mealTime,omitempty"`
	FoodsConsumed int           `json:"foodsConsumed"`
	Priority      int           `json:"priority"`
}

// SystemGap описывает слабую систему и число уже съеденных продуктов.
type SystemGap struct {
	System        DefenseSystem `json:"system"`
	FoodsConsumed int           `json:"foodsConsumed"`
}

// GapAnalysis описывает отчёт о дефицитах. Не сохраняется отдельно.
type GapAnalysis struct {
	MissingSystems []DefenseSystem `json:"missingSystems"`
	WeakSystems    []SystemGap     `json:"weakSystems"`
	MissedMeals    []MealTime      `json:"missedMeals"`
	VarietyScore   int             `json:"varietyScore"`
	LowVariety     bool            `json:"lowVariety"`
	UniqueFoods    int             `json:"uniqueFoods"`
	RepeatedFoods  []string        `json:"repeatedFoods"`
	OverallScore   int             `json:"overallScore"`
	SystemBalance  int             `json:"systemBalance"`
	Gaps           []Gap           `json:"gaps"`
}

// FoodFrequency хранит продукт и число его появлений в окне.
type FoodFrequency struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UserBehaviorProfile описывает производный 30-дневный профиль пользователя.
type UserBehaviorProfile struct {
	UserID                  string               `json:"userId"`
	PreferredMealTimes      []MealTime           `json:"preferredMealTimes"`
	FavoriteFoods           []FoodFrequency      `json:"favoriteFoods"`
	DietaryRestrictions     []string             `json:"dietaryRestrictions"`
	AverageDailyScore       float64              `json:"averageDailyScore"`
	ConsistencyPercent      float64              `json:"consistencyPercent"`
	AcceptanceRate          float64              `json:"acceptanceRate"`
	DismissedTypes          []RecommendationType `json:"dismissedTypes"`
	LastRecommendationAt    *time.Time           `json:"lastRecommendationAt"`
	EngagementScore         float64              `json:"engagementScore"`
	RecommendationsIssued   int                  `json:"recommendationsIssued"`
	RecommendationsAccepted int                  `json:"recommendationsAccepted"`
}

// Dismissed сообщает, отклонял ли пользователь тип недавно.
func (p UserBehaviorProfile) Dismissed(t RecommendationType) bool {
	for _, dt := range p.DismissedTypes {
		if dt == t {
			return true
		}
	}
	return false
}
