package recommend

import (
	"fmt"
	"testing"
	"time"

	"wellness-score/internal/domain"
	"wellness-score/internal/usecase/gaps"
	"wellness-score/internal/usecase/score"
)

var (
	testNow = time.Date(2024, 5, 14, 15, 0, 0, 0, time.UTC)
	testDay = time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
)

func systemFoods(system domain.DefenseSystem, n int) []domain.FoodItem {
	out := make([]domain.FoodItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.FoodItem{Name: fmt.Sprintf("%s-%d", system, i), Systems: []domain.DefenseSystem{system}})
	}
	return out
}

func dayWithCounts(counts map[domain.DefenseSystem]int, meal domain.MealTime) domain.Score5x5x5 {
	var foods []domain.FoodItem
	for _, system := range domain.DefenseSystems {
		foods = append(foods, systemFoods(system, counts[system])...)
	}
	var events []domain.ConsumptionEvent
	if len(foods) > 0 {
		events = append(events, domain.ConsumptionEvent{MealTime: meal, Foods: foods})
	}
	return score.Calculate(testUser, testDay, events)
}

func countTypes(batch []domain.Recommendation) map[domain.RecommendationType]int {
	out := make(map[domain.RecommendationType]int)
	for _, rec := range batch {
		out[rec.Type]++
	}
	return out
}

func TestPlanZeroActivity(t *testing.T) {
	analysis := gaps.Analyze(score.Calculate(testUser, testDay, nil))
	batch := Plan(testUser, analysis, domain.UserBehaviorProfile{}, testNow, 3, false)
	if len(batch) != 3 {
		t.Fatalf("ожидали 3 рекомендации, получили %d", len(batch))
	}
	if batch[0].Priority != domain.PriorityCritical || *batch[0].TargetSystem != domain.SystemAngiogenesis {
		t.Fatalf("первой должна быть критичная рекомендация для первой системы: %+v", batch[0])
	}
	for _, rec := range batch[1:] {
		if rec.Type != domain.RecommendationRecipe || rec.Priority != domain.PriorityHigh {
			t.Fatalf("остальные отсутствующие системы получают HIGH рецепты: %+v", rec)
		}
	}
	rec := batch[0]
	if rec.Status != domain.StatusPending || rec.ViewCount != 0 || rec.DismissCount != 0 || rec.ID == "" {
		t.Fatalf("неожиданное начальное состояние: %+v", rec)
	}
	if !rec.ExpiresAt.Equal(testNow.Add(72 * time.Hour)) {
		t.Fatalf("рецепт живёт 3 дня, получили %s", rec.ExpiresAt)
	}
	if rec.ActionURL != "/recipes/generate?system=ANGIOGENESIS" || rec.ActionData["targetSystem"] != "ANGIOGENESIS" {
		t.Fatalf("неожиданное действие: %s %v", rec.ActionURL, rec.ActionData)
	}
	if rec.Reasoning != "Angiogenesis has 0 of 5 foods today and your overall score is 0." {
		t.Fatalf("неожиданное обоснование: %q", rec.Reasoning)
	}
}

func TestPlanCriticalOnly(t *testing.T) {
	analysis := gaps.Analyze(score.Calculate(testUser, testDay, nil))
	batch := Plan(testUser, analysis, domain.UserBehaviorProfile{}, testNow, 3, true)
	if len(batch) != 1 || batch[0].Priority != domain.PriorityCritical {
		t.Fatalf("ожидали одну критичную рекомендацию, получили %d", len(batch))
	}
}

func TestPlanSkipsRecentlyDismissedType(t *testing.T) {
	s := dayWithCounts(map[domain.DefenseSystem]int{
		domain.SystemAngiogenesis: 5,
		domain.SystemRegeneration: 2,
		domain.SystemMicrobiome:   1,
	}, domain.MealBreakfast)
	analysis := gaps.Analyze(s)
	if len(analysis.MissingSystems) != 2 {
		t.Fatalf("ожидали 2 отсутствующие системы, получили %v", analysis.MissingSystems)
	}
	profile := domain.UserBehaviorProfile{DismissedTypes: []domain.RecommendationType{domain.RecommendationRecipe}}

	batch := Plan(testUser, analysis, profile, testNow, 3, false)
	types := countTypes(batch)
	if types[domain.RecommendationRecipe] != 0 {
		t.Fatalf("отклонённый тип не должен появляться: %v", types)
	}
	if len(batch) != 3 || batch[0].Type != domain.RecommendationMealPlan || batch[1].Type != domain.RecommendationFoodSuggestion || batch[2].Type != domain.RecommendationWorkflowStep {
		t.Fatalf("неожиданная пачка: %v", types)
	}
	systems := batch[0].ActionData["targetSystems"].([]string)
	want := []string{"REGENERATION", "MICROBIOME", "DNA_PROTECTION"}
	if fmt.Sprint(systems) != fmt.Sprint(want) {
		t.Fatalf("план должен называть сначала слабые, потом отсутствующие системы: %v", systems)
	}
	if batch[0].TargetSystem != nil {
		t.Fatalf("план питания не привязан к одной системе")
	}
	if *batch[2].TargetMealTime != domain.MealLunch || !batch[2].ExpiresAt.Equal(testNow.Add(12*time.Hour)) {
		t.Fatalf("шаг для обеда живёт 12 часов: %+v", batch[2])
	}
}

func TestPlanVarietyNeedsBaselineFoods(t *testing.T) {
	analysis := domain.GapAnalysis{
		OverallScore: 55,
		VarietyScore: 45,
		LowVariety:   true,
		UniqueFoods:  2,
	}
	if types := countTypes(Plan(testUser, analysis, domain.UserBehaviorProfile{}, testNow, 3, false)); types[domain.RecommendationFoodSuggestion] != 0 {
		t.Fatalf("с двумя продуктами подсказка по разнообразию не нужна")
	}
	analysis.UniqueFoods = 3
	analysis.RepeatedFoods = []string{"Oats", "Tea", "Kale", "Rice"}
	batch := Plan(testUser, analysis, domain.UserBehaviorProfile{}, testNow, 3, false)
	if len(batch) != 1 || batch[0].Type != domain.RecommendationFoodSuggestion || batch[0].Priority != domain.PriorityMedium {
		t.Fatalf("ожидали одну подсказку по разнообразию, получили %v", countTypes(batch))
	}
	if avoid := batch[0].ActionData["avoidFoods"].([]string); len(avoid) != 3 {
		t.Fatalf("ожидали не больше 3 повторов, получили %v", avoid)
	}
	if !batch[0].ExpiresAt.Equal(testNow.Add(7 * 24 * time.Hour)) {
		t.Fatalf("подсказка живёт 7 дней")
	}
}

func TestPlanBatchLimits(t *testing.T) {
	counts := make([]int, len(domain.DefenseSystems))
	var walk func(i int)
	walk = func(i int) {
		if i == len(counts) {
			byName := make(map[domain.DefenseSystem]int)
			for j, system := range domain.DefenseSystems {
				byName[system] = counts[j]
			}
			for _, meal := range []domain.MealTime{domain.MealBreakfast, domain.MealSnack} {
				analysis := gaps.Analyze(dayWithCounts(byName, meal))
				batch := Plan(testUser, analysis, domain.UserBehaviorProfile{}, testNow, 3, false)
				if len(batch) > 3 {
					t.Fatalf("пачка больше 3 для %v", counts)
				}
				seen := make(map[domain.DefenseSystem]bool)
				for _, rec := range batch {
					if rec.TargetSystem == nil {
						continue
					}
					if seen[*rec.TargetSystem] {
						t.Fatalf("повтор системы %s для %v", *rec.TargetSystem, counts)
					}
					seen[*rec.TargetSystem] = true
				}
			}
			return
		}
		for c := 0; c <= 5; c++ {
			counts[i] = c
			walk(i + 1)
		}
	}
	walk(0)
}
