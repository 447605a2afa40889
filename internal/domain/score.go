package domain

import "time"

// SystemScore описывает оценку одной защитной системы за день.
type SystemScore struct {
	System          DefenseSystem `json:"system"`
	FoodsConsumed   int           `json:"foodsConsumed"`
	UniqueFoods     []string      `json:"uniqueFoods"`
	CoveragePercent int           `json:"coveragePercent"`
	Score           int           `json:"score"`
}

// MealTimeScore описывает покрытие одного слота приёма пищи.
type MealTimeScore struct {
	MealTime       MealTime        `json:"mealTime"`
	HasFood        bool            `json:"hasFood"`
	FoodCount      int             `json:"foodCount"`
	SystemsCovered []DefenseSystem `json:"systemsCovered"`
	Score          int             `json:"score"`
}

// FoodVarietyScore описывает разнообразие рациона за день.
type FoodVarietyScore struct {
	TotalUniqueFoods int      `json:"totalUniqueFoods"`
	Score            int      `json:"varietyScore"`
	RepeatedFoods    []string `json:"repeatedFoods"`
	DiversityIndex   float64  `json:"diversityIndex"`
}

// ScoreInsights содержит шаблонные выводы по дневному скору.
type ScoreInsights struct {
	StrongestSystem *DefenseSystem `json:"strongestSystem"`
	WeakestSystem   *DefenseSystem `json:"weakestSystem"`
	MissedMeals     []MealTime     `json:"missedMeals"`
	SystemBalance   int            `json:"systemBalance"`
	Recommendation  string         `json:"recommendation"`
	NextSteps       []string       `json:"nextSteps"`
}

// Score5x5x5 описывает итоговый скор пользователя за календарный день.
// Создаётся целиком на каждый расчёт и не меняется после возврата.
type Score5x5x5 struct {
	UserID         string           `json:"userId"`
	Date           time.Time        `json:"date"`
	OverallScore   int              `json:"overallScore"`
	SystemScores   []SystemScore    `json:"systemScores"`
	MealTimeScores []MealTimeScore  `json:"mealTimeScores"`
	FoodVariety    FoodVarietyScore `json:"foodVariety"`
	Insights       ScoreInsights    `json:"insights"`
	CalculatedAt   time.Time        `json:"calculatedAt"`
}

// System возвращает оценку системы или нулевое значение.
func (s Score5x5x5) System(system DefenseSystem) SystemScore {
	for _, ss := range s.SystemScores {
		if ss.System == system {
			return ss
		}
	}
	return SystemScore{System: system}
}

// CachedScoreRecord хранит плоскую проекцию Score5x5x5 для кэша.
// Хранятся только счётчики: списки продуктов при восстановлении теряются.
type CachedScoreRecord struct {
	UserID             string    `json:"userId"`
	Day                time.Time `json:"day"`
	OverallScore       int       `json:"overallScore"`
	AngiogenesisCount  int       `json:"angiogenesisCount"`
	RegenerationCount  int       `json:"regenerationCount"`
	MicrobiomeCount    int       `json:"microbiomeCount"`
	DNAProtectionCount int       `json:"dnaProtectionCount"`
	ImmunityCount      int       `json:"immunityCount"`
	BreakfastCount     int       `json:"breakfastCount"`
	LunchCount         int       `json:"lunchCount"`
	DinnerCount        int       `json:"dinnerCount"`
	SnackCount         int       `json:"snackCount"`
	UniqueFoodCount    int       `json:"uniqueFoodCount"`
	VarietyScore       int       `json:"varietyScore"`
	DiversityIndex     float64   `json:"diversityIndex"`
	CreatedAt          time.Time `json:"createdAt"`
}

// SystemCount возвращает сохранённый счётчик системы.
func (r CachedScoreRecord) SystemCount(system DefenseSystem) int {
	switch system {
	case SystemAngiogenesis:
		return r.AngiogenesisCount
	case SystemRegeneration:
		return r.RegenerationCount
	case SystemMicrobiome:
		return r.MicrobiomeCount
	case SystemDNAProtection:
		return r.DNAProtectionCount
	case SystemImmunity:
		return r.ImmunityCount
	}
	return 0
}

// SetSystemCount записывает счётчик системы.
func (r *CachedScoreRecord) SetSystemCount(system DefenseSystem, n int) {
	switch system {
	case SystemAngiogenesis:
		r.AngiogenesisCount = n
	case SystemRegeneration:
		r.RegenerationCount = n
	case SystemMicrobiome:
		r.MicrobiomeCount = n
	case SystemDNAProtection:
		r.DNAProtectionCount = n
	case SystemImmunity:
		r.ImmunityCount = n
	}
}

// MealCount возвращает сохранённое число продуктов в слоте.
func (r CachedScoreRecord) MealCount(meal MealTime) int {
	switch meal {
	case MealBreakfast:
		return r.BreakfastCount
	case MealLunch:
		return r.LunchCount
	case MealDinner:
		return r.DinnerCount
	case MealSnack:
		return r.SnackCount
	}
	return 0
}

// SetMealCount записывает число продуктов в слоте.
func (r *CachedScoreRecord) SetMealCount(meal MealTime, n int) {
	switch meal {
	case MealBreakfast:
		r.BreakfastCount = n
	case MealLunch:
		r.LunchCount = n
	case MealDinner:
		r.DinnerCount = n
	case MealSnack:
		r.SnackCount = n
	}
}
