package score

import (
	"fmt"
	"math"

	"wellness-score/internal/domain"
)

const (
	excellentSystemScore = 85
	varietyStepThreshold = 10
)

// BuildInsights формирует шаблонные выводы по оценкам систем, слотов и разнообразию.
func BuildInsights(systems []domain.SystemScore, meals []domain.MealTimeScore, variety domain.FoodVarietyScore) domain.ScoreInsights {
	insights := domain.ScoreInsights{
		StrongestSystem: strongest(systems),
		WeakestSystem:   weakest(systems),
		MissedMeals:     missedMeals(meals),
		SystemBalance:   SystemBalance(systems),
	}

	var weakestScore domain.SystemScore
	if insights.WeakestSystem != nil {
		for _, ss := range systems {
			if ss.System == *insights.WeakestSystem {
				weakestScore = ss
				break
			}
		}
	}

	switch {
	case allAtLeast(systems, excellentSystemScore):
		insights.Recommendation = "Outstanding day! All five defense systems are well covered."
		insights.NextSteps = []string{
			"Maintain your 5x5x5 routine tomorrow",
			"Keep rotating foods so every system stays strong",
		}
	case insights.WeakestSystem != nil:
		need := domain.FoodsPerSystemGoal - weakestScore.FoodsConsumed
		name := insights.WeakestSystem.DisplayName()
		insights.Recommendation = fmt.Sprintf("Focus on %s: add %d more unique %s to reach today's goal of %d.",
			name, need, foodsWord(need), domain.FoodsPerSystemGoal)
		insights.NextSteps = []string{fmt.Sprintf("Add %d %s that support %s", need, foodsWord(need), name)}
		if len(insights.MissedMeals) > 0 {
			insights.NextSteps = append(insights.NextSteps,
				fmt.Sprintf("Log your %s to cover more systems", insights.MissedMeals[0].DisplayName()))
		}
	case len(insights.MissedMeals) > 0:
		meal := insights.MissedMeals[0].DisplayName()
		insights.Recommendation = fmt.Sprintf("Don't skip %s: every meal is a chance to feed your defense systems.", meal)
		insights.NextSteps = []string{fmt.Sprintf("Plan a %s with foods from at least two systems", meal)}
	default:
		insights.Recommendation = "Keep exploring new foods to strengthen every defense system."
		insights.NextSteps = []string{"Try one food you haven't eaten this week"}
	}

	if variety.TotalUniqueFoods < varietyStepThreshold {
		insights.NextSteps = append(insights.NextSteps,
			fmt.Sprintf("Aim for at least %d unique foods today (currently %d)", varietyStepThreshold, variety.TotalUniqueFoods))
	}
	return insights
}

// SystemBalance считает max(0, round(100 - стандартное отклонение оценок систем)).
func SystemBalance(systems []domain.SystemScore) int {
	if len(systems) == 0 {
		return 0
	}
	mean := 0.0
	for _, ss := range systems {
		mean += float64(ss.Score)
	}
	mean /= float64(len(systems))
	variance := 0.0
	for _, ss := range systems {
		d := float64(ss.Score) - mean
		variance += d * d
	}
	variance /= float64(len(systems))
	balance := int(math.Round(100 - math.Sqrt(variance)))
	if balance < 0 {
		return 0
	}
	return balance
}

func strongest(systems []domain.SystemScore) *domain.DefenseSystem {
	var best *domain.DefenseSystem
	bestScore := 0
	for i := range systems {
		if systems[i].Score > bestScore {
			system := systems[i].System
			best = &system
			bestScore = systems[i].Score
		}
	}
	return best
}

// weakest выбирает систему с минимальной оценкой среди недобравших цель.
// При равенстве побеждает первая в каноническом порядке.
func weakest(systems []domain.SystemScore) *domain.DefenseSystem {
	var worst *domain.DefenseSystem
	worstScore := 101
	for i := range systems {
		if systems[i].Score >= 100 {
			continue
		}
		if systems[i].Score < worstScore {
			system := systems[i].System
			worst = &system
			worstScore = systems[i].Score
		}
	}
	return worst
}

func missedMeals(meals []domain.MealTimeScore) []domain.MealTime {
	out := make([]domain.MealTime, 0)
	for _, m := range meals {
		if !m.HasFood {
			out = append(out, m.MealTime)
		}
	}
	return out
}

func allAtLeast(systems []domain.SystemScore, threshold int) bool {
	if len(systems) == 0 {
		return false
	}
	for _, ss := range systems {
		if ss.Score < threshold {
			return false
		}
	}
	return true
}

func foodsWord(n int) string {
	if n == 1 {
		return "food"
	}
	return "foods"
}
