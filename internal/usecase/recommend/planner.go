package recommend

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellness-score/internal/domain"
)

const (
	missingStepScore   = 50
	minWeakForPlan     = 2
	maxPlanSystems     = 3
	maxAvoidFoods      = 3
	minFoodsForVariety = 3
)

// Сроки жизни рекомендаций по типам.
var expiries = map[domain.RecommendationType]time.Duration{
	domain.RecommendationRecipe:         3 * 24 * time.Hour,
	domain.RecommendationMealPlan:       7 * 24 * time.Hour,
	domain.RecommendationFoodSuggestion: 7 * 24 * time.Hour,
	domain.RecommendationWorkflowStep:   12 * time.Hour,
}

// Expiry возвращает срок жизни рекомендации типа t.
func Expiry(t domain.RecommendationType) time.Duration {
	return expiries[t]
}

// planner собирает пачку рекомендаций по лестнице шагов.
type planner struct {
	userID   string
	analysis domain.GapAnalysis
	profile  domain.UserBehaviorProfile
	now      time.Time
	limit    int
	newID    func() string

	batch    []domain.Recommendation
	targeted map[domain.DefenseSystem]bool
}

// Plan строит пачку рекомендаций без побочных эффектов.
// criticalOnly оставляет только первый шаг лестницы.
func Plan(userID string, analysis domain.GapAnalysis, profile domain.UserBehaviorProfile, now time.Time, limit int, criticalOnly bool) []domain.Recommendation {
	p := &planner{
		userID:   userID,
		analysis: analysis,
		profile:  profile,
		now:      now,
		limit:    limit,
		newID:    uuid.NewString,
		batch:    make([]domain.Recommendation, 0, limit),
		targeted: make(map[domain.DefenseSystem]bool),
	}
	return p.run(criticalOnly)
}

func (p *planner) run(criticalOnly bool) []domain.Recommendation {
	p.criticalMissingSystem()
	if criticalOnly {
		return p.batch
	}
	p.remainingMissingSystems()
	p.weakSystemsPlan()
	p.varietySuggestion()
	p.missedMealStep()
	return p.batch
}

func (p *planner) full() bool {
	return len(p.batch) >= p.limit
}

func (p *planner) allowed(t domain.RecommendationType) bool {
	return !p.full() && !p.profile.Dismissed(t)
}

func (p *planner) add(rec domain.Recommendation) {
	if p.full() {
		return
	}
	if rec.TargetSystem != nil {
		if p.targeted[*rec.TargetSystem] {
			return
		}
		p.targeted[*rec.TargetSystem] = true
	}
	p.batch = append(p.batch, rec)
}

// Шаг 1: критическая рекомендация для первой отсутствующей системы.
func (p *planner) criticalMissingSystem() {
	if p.analysis.OverallScore >= missingStepScore || len(p.analysis.MissingSystems) == 0 {
		return
	}
	if !p.allowed(domain.RecommendationRecipe) {
		return
	}
	p.add(p.recipe(p.analysis.MissingSystems[0], domain.PriorityCritical))
}

// Шаг 2: по рецепту на каждую оставшуюся отсутствующую систему.
func (p *planner) remainingMissingSystems() {
	if !p.allowed(domain.RecommendationRecipe) {
		return
	}
	for _, system := range p.analysis.MissingSystems {
		if p.full() {
			return
		}
		if p.targeted[system] {
			continue
		}
		p.add(p.recipe(system, domain.PriorityHigh))
	}
}

// Шаг 3: план питания, если слабых систем хотя бы две.
func (p *planner) weakSystemsPlan() {
	if len(p.analysis.WeakSystems) < minWeakForPlan || !p.allowed(domain.RecommendationMealPlan) {
		return
	}
	systems := make([]domain.DefenseSystem, 0, maxPlanSystems)
	for _, w := range p.analysis.WeakSystems {
		if len(systems) == maxPlanSystems {
			break
		}
		systems = append(systems, w.System)
	}
	for _, m := range p.analysis.MissingSystems {
		if len(systems) == maxPlanSystems {
			break
		}
		systems = append(systems, m)
	}
	p.add(p.mealPlan(systems))
}

// Шаг 4: подсказка по разнообразию. Пользователю с парой продуктов
// сначала нужно логировать еду, а не разнообразить её.
func (p *planner) varietySuggestion() {
	if !p.analysis.LowVariety || p.analysis.UniqueFoods < minFoodsForVariety {
		return
	}
	if !p.allowed(domain.RecommendationFoodSuggestion) {
		return
	}
	p.add(p.foodSuggestion())
}

// Шаг 5: короткий шаг для первого пропущенного приёма пищи.
func (p *planner) missedMealStep() {
	if len(p.analysis.MissedMeals) == 0 || !p.allowed(domain.RecommendationWorkflowStep) {
		return
	}
	p.add(p.workflowStep(p.analysis.MissedMeals[0]))
}

func (p *planner) base(t domain.RecommendationType, priority domain.RecommendationPriority) domain.Recommendation {
	return domain.Recommendation{
		ID:        p.newID(),
		UserID:    p.userID,
		Type:      t,
		Priority:  priority,
		Status:    domain.StatusPending,
		CreatedAt: p.now,
		ExpiresAt: p.now.Add(Expiry(t)),
	}
}

func (p *planner) preferredMeal() string {
	if len(p.profile.PreferredMealTimes) > 0 {
		return string(p.profile.PreferredMealTimes[0])
	}
	if len(p.analysis.MissedMeals) > 0 {
		return string(p.analysis.MissedMeals[0])
	}
	return ""
}

func (p *planner) restrictions() []string {
	return append([]string{}, p.profile.DietaryRestrictions...)
}

func (p *planner) recipe(system domain.DefenseSystem, priority domain.RecommendationPriority) domain.Recommendation {
	name := system.DisplayName()
	rec := p.base(domain.RecommendationRecipe, priority)
	rec.Title = fmt.Sprintf("Cook something for %s", name)
	rec.Description = fmt.Sprintf("Nothing you ate today supports %s yet. Generate a recipe built around foods for this system.", name)
	rec.Reasoning = fmt.Sprintf("%s has 0 of %d foods today and your overall score is %d.", name, domain.FoodsPerSystemGoal, p.analysis.OverallScore)
	rec.ActionLabel = "Generate recipe"
	rec.ActionURL = "/recipes/generate?system=" + string(system)
	rec.ActionData = map[string]any{
		"targetSystem":        string(system),
		"foodsNeeded":         domain.FoodsPerSystemGoal,
		"dietaryRestrictions": p.restrictions(),
		"mealTime":            p.preferredMeal(),
	}
	target := system
	rec.TargetSystem = &target
	return rec
}

func (p *planner) mealPlan(systems []domain.DefenseSystem) domain.Recommendation {
	names := make([]string, 0, len(systems))
	codes := make([]string, 0, len(systems))
	for _, s := range systems {
		names = append(names, s.DisplayName())
		codes = append(codes, string(s))
	}
	rec := p.base(domain.RecommendationMealPlan, domain.PriorityHigh)
	rec.Title = "Plan meals for your weaker systems"
	rec.Description = fmt.Sprintf("A meal plan focused on %s will help you reach 5 foods per system.", joinNames(names))
	rec.Reasoning = fmt.Sprintf("%d systems are below the goal of %d foods today.", len(p.analysis.WeakSystems), domain.FoodsPerSystemGoal)
	rec.ActionLabel = "Create meal plan"
	rec.ActionURL = "/meal-plans/generate?systems=" + strings.Join(codes, ",")
	rec.ActionData = map[string]any{
		"targetSystems":       codes,
		"days":                7,
		"dietaryRestrictions": p.restrictions(),
		"mealTime":            p.preferredMeal(),
	}
	return rec
}

func (p *planner) foodSuggestion() domain.Recommendation {
	avoid := p.analysis.RepeatedFoods
	if len(avoid) > maxAvoidFoods {
		avoid = avoid[:maxAvoidFoods]
	}
	avoid = append([]string{}, avoid...)
	rec := p.base(domain.RecommendationFoodSuggestion, domain.PriorityMedium)
	rec.Title = "Try something new"
	if len(avoid) > 0 {
		rec.Description = fmt.Sprintf("You had %s more than once today. Swap them for new foods to raise your variety.", joinNames(avoid))
	} else {
		rec.Description = "Add a few foods you haven't eaten today to raise your variety."
	}
	rec.Reasoning = fmt.Sprintf("Variety score is %d with %d unique foods; 60 or more is the target.", p.analysis.VarietyScore, p.analysis.UniqueFoods)
	rec.ActionLabel = "Discover foods"
	rec.ActionURL = "/foods/discover"
	rec.ActionData = map[string]any{
		"avoidFoods":          avoid,
		"uniqueFoods":         p.analysis.UniqueFoods,
		"varietyScore":        p.analysis.VarietyScore,
		"dietaryRestrictions": p.restrictions(),
	}
	return rec
}

func (p *planner) workflowStep(meal domain.MealTime) domain.Recommendation {
	name := meal.DisplayName()
	rec := p.base(domain.RecommendationWorkflowStep, domain.PriorityMedium)
	rec.Title = fmt.Sprintf("Log your %s", name)
	rec.Description = fmt.Sprintf("You haven't logged %s today. Every meal you log makes your score more complete.", name)
	rec.Reasoning = fmt.Sprintf("No foods logged for %s today.", name)
	rec.ActionLabel = "Log " + name
	rec.ActionURL = "/log?mealTime=" + string(meal)
	rec.ActionData = map[string]any{
		"mealTime": string(meal),
	}
	target := meal
	rec.TargetMealTime = &target
	return rec
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
