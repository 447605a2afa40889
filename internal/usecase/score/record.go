package score

import (
	"time"

	"wellness-score/internal/domain"
)

// Flatten превращает скор в плоскую запись кэша.
func Flatten(s domain.Score5x5x5, createdAt time.Time) domain.CachedScoreRecord {
	rec := domain.CachedScoreRecord{
		UserID:          s.UserID,
		Day:             CanonicalDay(s.Date),
		OverallScore:    s.OverallScore,
		UniqueFoodCount: s.FoodVariety.TotalUniqueFoods,
		VarietyScore:    s.FoodVariety.Score,
		DiversityIndex:  s.FoodVariety.DiversityIndex,
		CreatedAt:       createdAt,
	}
	for _, ss := range s.SystemScores {
		rec.SetSystemCount(ss.System, ss.FoodsConsumed)
	}
	for _, ms := range s.MealTimeScores {
		rec.SetMealCount(ms.MealTime, ms.FoodCount)
	}
	return rec
}

// FromRecord восстанавливает скор из записи кэша.
//
// Восстановление с потерями: UniqueFoods, SystemsCovered и RepeatedFoods
// возвращаются пустыми, верны только счётчики и итоговые значения.
// Такой скор нельзя использовать там, где нужны конкретные продукты.
func FromRecord(rec domain.CachedScoreRecord) domain.Score5x5x5 {
	systems := make([]domain.SystemScore, 0, len(domain.DefenseSystems))
	for _, system := range domain.DefenseSystems {
		systems = append(systems, buildSystemScore(system, rec.SystemCount(system)))
	}
	meals := make([]domain.MealTimeScore, 0, len(domain.MealTimes))
	for _, meal := range domain.MealTimes {
		meals = append(meals, mealScore(meal, rec.MealCount(meal), nil))
	}
	variety := domain.FoodVarietyScore{
		TotalUniqueFoods: rec.UniqueFoodCount,
		Score:            rec.VarietyScore,
		RepeatedFoods:    []string{},
		DiversityIndex:   rec.DiversityIndex,
	}
	return domain.Score5x5x5{
		UserID:         rec.UserID,
		Date:           rec.Day,
		OverallScore:   rec.OverallScore,
		SystemScores:   systems,
		MealTimeScores: meals,
		FoodVariety:    variety,
		Insights:       BuildInsights(systems, meals, variety),
		CalculatedAt:   rec.CreatedAt,
	}
}
