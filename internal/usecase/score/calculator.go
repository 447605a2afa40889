package score

import (
	"math"
	"strings"
	"time"

	"wellness-score/internal/domain"
)

// VarietyGoal задаёт число уникальных продуктов за день, дающее 100 баллов разнообразия.
const VarietyGoal = 25

const (
	systemWeight  = 0.5
	mealWeight    = 0.3
	varietyWeight = 0.2
)

// SystemScoreFor переводит число уникальных продуктов системы в оценку по ступенчатой кривой.
func SystemScoreFor(uniqueFoods int) int {
	switch {
	case uniqueFoods >= 5:
		return 100
	case uniqueFoods == 4:
		return 85
	case uniqueFoods == 3:
		return 70
	case uniqueFoods == 2:
		return 50
	case uniqueFoods == 1:
		return 30
	}
	return 0
}

// VarietyScoreFor масштабирует число уникальных продуктов в 0..100.
func VarietyScoreFor(uniqueFoods int) int {
	if uniqueFoods <= 0 {
		return 0
	}
	if uniqueFoods >= VarietyGoal {
		return 100
	}
	return int(math.Round(float64(uniqueFoods) / VarietyGoal * 100))
}

// OverallScoreFor сводит три компоненты в итоговый скор.
func OverallScoreFor(systemScores []int, mealsWithFood, totalMeals, variety int) int {
	avg := 0.0
	if len(systemScores) > 0 {
		sum := 0
		for _, s := range systemScores {
			sum += s
		}
		avg = float64(sum) / float64(len(systemScores))
	}
	coverage := 0.0
	if totalMeals > 0 {
		coverage = float64(mealsWithFood) / float64(totalMeals) * 100
	}
	return int(math.Round(systemWeight*avg + mealWeight*coverage + varietyWeight*float64(variety)))
}

// nameSet хранит уникальные продукты в порядке первого появления.
type nameSet struct {
	order   []string
	display map[string]string
}

func newNameSet() *nameSet {
	return &nameSet{display: make(map[string]string)}
}

func (s *nameSet) add(key, display string) {
	if _, ok := s.display[key]; ok {
		return
	}
	s.display[key] = display
	s.order = append(s.order, key)
}

func (s *nameSet) names() []string {
	out := make([]string, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.display[key])
	}
	return out
}

func foodKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Calculate строит скор за день из событий потребления. Функция чистая:
// CalculatedAt не заполняется, это делает вызывающая сторона.
func Calculate(userID string, day time.Time, events []domain.ConsumptionEvent) domain.Score5x5x5 {
	perSystem := make(map[domain.DefenseSystem]*nameSet, len(domain.DefenseSystems))
	for _, system := range domain.DefenseSystems {
		perSystem[system] = newNameSet()
	}
	all := newNameSet()
	instances := make(map[string]int)
	totalInstances := 0
	entries := 0
	tagged := false
	mealFoods := make(map[domain.MealTime]int)
	mealSystems := make(map[domain.MealTime]map[domain.DefenseSystem]struct{})

	for _, ev := range events {
		meal := ev.MealTime
		if meal.Valid() {
			tagged = true
		}
		for _, food := range ev.Foods {
			key := foodKey(food.Name)
			if key == "" {
				continue
			}
			entries++
			if meal.Valid() {
				mealFoods[meal]++
			}
			counted := false
			for _, system := range food.Systems {
				set, ok := perSystem[system]
				if !ok {
					continue
				}
				set.add(key, strings.TrimSpace(food.Name))
				counted = true
				if meal.Valid() {
					if mealSystems[meal] == nil {
						mealSystems[meal] = make(map[domain.DefenseSystem]struct{})
					}
					mealSystems[meal][system] = struct{}{}
				}
			}
			if !counted {
				continue
			}
			all.add(key, strings.TrimSpace(food.Name))
			instances[key]++
			totalInstances++
		}
	}

	systems := make([]domain.SystemScore, 0, len(domain.DefenseSystems))
	rawScores := make([]int, 0, len(domain.DefenseSystems))
	for _, system := range domain.DefenseSystems {
		set := perSystem[system]
		ss := buildSystemScore(system, len(set.order))
		ss.UniqueFoods = set.names()
		systems = append(systems, ss)
		rawScores = append(rawScores, ss.Score)
	}

	var meals []domain.MealTimeScore
	if tagged || entries == 0 {
		meals = mealScoresFromSlots(mealFoods, mealSystems)
	} else {
		meals = EstimateMealCoverage(entries)
	}

	repeated := make([]string, 0)
	for _, key := range all.order {
		if instances[key] > 1 {
			repeated = append(repeated, all.display[key])
		}
	}
	variety := domain.FoodVarietyScore{
		TotalUniqueFoods: len(all.order),
		Score:            VarietyScoreFor(len(all.order)),
		RepeatedFoods:    repeated,
	}
	if totalInstances > 0 {
		variety.DiversityIndex = float64(len(all.order)) / float64(totalInstances)
	}

	return assemble(userID, day, systems, rawScores, meals, variety)
}

func assemble(userID string, day time.Time, systems []domain.SystemScore, rawScores []int, meals []domain.MealTimeScore, variety domain.FoodVarietyScore) domain.Score5x5x5 {
	mealsWithFood := 0
	for _, m := range meals {
		if m.HasFood {
			mealsWithFood++
		}
	}
	return domain.Score5x5x5{
		UserID:         userID,
		Date:           day,
		OverallScore:   OverallScoreFor(rawScores, mealsWithFood, len(domain.MealTimes), variety.Score),
		SystemScores:   systems,
		MealTimeScores: meals,
		FoodVariety:    variety,
		Insights:       BuildInsights(systems, meals, variety),
	}
}

func buildSystemScore(system domain.DefenseSystem, unique int) domain.SystemScore {
	capped := unique
	if capped > domain.FoodsPerSystemGoal {
		capped = domain.FoodsPerSystemGoal
	}
	return domain.SystemScore{
		System:          system,
		FoodsConsumed:   unique,
		UniqueFoods:     []string{},
		CoveragePercent: capped * 100 / domain.FoodsPerSystemGoal,
		Score:           SystemScoreFor(unique),
	}
}

func mealScoresFromSlots(foods map[domain.MealTime]int, systems map[domain.MealTime]map[domain.DefenseSystem]struct{}) []domain.MealTimeScore {
	out := make([]domain.MealTimeScore, 0, len(domain.MealTimes))
	for _, meal := range domain.MealTimes {
		covered := make([]domain.DefenseSystem, 0)
		for _, system := range domain.DefenseSystems {
			if _, ok := systems[meal][system]; ok {
				covered = append(covered, system)
			}
		}
		out = append(out, mealScore(meal, foods[meal], covered))
	}
	return out
}

func mealScore(meal domain.MealTime, count int, covered []domain.DefenseSystem) domain.MealTimeScore {
	ms := domain.MealTimeScore{MealTime: meal, FoodCount: count, SystemsCovered: covered}
	if covered == nil {
		ms.SystemsCovered = []domain.DefenseSystem{}
	}
	if count > 0 {
		ms.HasFood = true
		ms.Score = 100
	}
	return ms
}

// EstimateMealCoverage распределяет записи без привязки к слоту по слотам.
// Записи распределяются поровну максимум по трём основным слотам,
// остаток уходит в первые слоты. Перекус при оценке не заполняется.
func EstimateMealCoverage(entries int) []domain.MealTimeScore {
	slots := []domain.MealTime{domain.MealBreakfast, domain.MealLunch, domain.MealDinner}
	filled := entries
	if filled > len(slots) {
		filled = len(slots)
	}
	counts := make(map[domain.MealTime]int, len(slots))
	for i := 0; i < filled; i++ {
		n := entries / filled
		if i < entries%filled {
			n++
		}
		counts[slots[i]] = n
	}
	out := make([]domain.MealTimeScore, 0, len(domain.MealTimes))
	for _, meal := range domain.MealTimes {
		out = append(out, mealScore(meal, counts[meal], nil))
	}
	return out
}
