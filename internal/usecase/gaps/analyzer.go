package gaps

import (
	"sort"

	"wellness-score/internal/domain"
)

// Пороговые значения и базовые приоритеты дефицитов.
const (
	LowVarietyThreshold = 60

	missingPriority         = 80
	missingPriorityCritical = 95
	criticalOverallScore    = 40
	weakPriorityDelta       = 15
	mealPriority            = 60
	coreMealPriority        = 70
	varietyPriority         = 40
	varietyPriorityBoosted  = 55
	varietyBoostScore       = 70
)

// Analyze строит отчёт о дефицитах по посчитанному скору.
//
// Приоритеты только упорядочивают список. Приоритет разнообразия повышается,
// когда итоговый скор уже высокий, и остаётся низким для тех, у кого день не задался.
func Analyze(s domain.Score5x5x5) domain.GapAnalysis {
	analysis := domain.GapAnalysis{
		MissingSystems: make([]domain.DefenseSystem, 0),
		WeakSystems:    make([]domain.SystemGap, 0),
		MissedMeals:    make([]domain.MealTime, 0),
		VarietyScore:   s.FoodVariety.Score,
		LowVariety:     s.FoodVariety.Score < LowVarietyThreshold,
		UniqueFoods:    s.FoodVariety.TotalUniqueFoods,
		RepeatedFoods:  append([]string{}, s.FoodVariety.RepeatedFoods...),
		OverallScore:   s.OverallScore,
		SystemBalance:  s.Insights.SystemBalance,
		Gaps:           make([]domain.Gap, 0),
	}

	missingPrio := MissingSystemPriority(s.OverallScore)
	for _, ss := range s.SystemScores {
		switch {
		case ss.FoodsConsumed == 0:
			analysis.MissingSystems = append(analysis.MissingSystems, ss.System)
			analysis.Gaps = append(analysis.Gaps, domain.Gap{Kind: domain.GapMissingSystem, System: ss.System, Priority: missingPrio})
		case ss.FoodsConsumed < domain.FoodsPerSystemGoal:
			analysis.WeakSystems = append(analysis.WeakSystems, domain.SystemGap{System: ss.System, FoodsConsumed: ss.FoodsConsumed})
			analysis.Gaps = append(analysis.Gaps, domain.Gap{
				Kind:          domain.GapWeakSystem,
				System:        ss.System,
				FoodsConsumed: ss.FoodsConsumed,
				Priority:      missingPrio - weakPriorityDelta,
			})
		}
	}

	for _, ms := range s.MealTimeScores {
		if ms.HasFood {
			continue
		}
		analysis.MissedMeals = append(analysis.MissedMeals, ms.MealTime)
		analysis.Gaps = append(analysis.Gaps, domain.Gap{Kind: domain.GapMissedMeal, MealTime: ms.MealTime, Priority: MealPriority(ms.MealTime)})
	}

	if analysis.LowVariety {
		analysis.Gaps = append(analysis.Gaps, domain.Gap{
			Kind:          domain.GapLowVariety,
			FoodsConsumed: s.FoodVariety.TotalUniqueFoods,
			Priority:      VarietyPriority(s.OverallScore),
		})
	}

	sort.SliceStable(analysis.Gaps, func(i, j int) bool {
		return analysis.Gaps[i].Priority > analysis.Gaps[j].Priority
	})
	return analysis
}

// MissingSystemPriority возвращает 80, либо 95 при итоговом скоре ниже 40.
func MissingSystemPriority(overall int) int {
	if overall < criticalOverallScore {
		return missingPriorityCritical
	}
	return missingPriority
}

// MealPriority возвращает 70 для основного приёма пищи и 60 для перекуса.
func MealPriority(meal domain.MealTime) int {
	if meal.IsCore() {
		return coreMealPriority
	}
	return mealPriority
}

// VarietyPriority возвращает 55 при итоговом скоре выше 70, иначе 40.
func VarietyPriority(overall int) int {
	if overall > varietyBoostScore {
		return varietyPriorityBoosted
	}
	return varietyPriority
}

// IsZeroActivity сообщает, что за день ничего не залогировано.
func IsZeroActivity(a domain.GapAnalysis) bool {
	return a.OverallScore == 0 && len(a.MissingSystems) == len(domain.DefenseSystems)
}
