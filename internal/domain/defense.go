package domain

import "strings"

// DefenseSystem описывает одну из пяти защитных систем модели 5x5x5.
type DefenseSystem string

const (
	SystemAngiogenesis  DefenseSystem = "ANGIOGENESIS"
	SystemRegeneration  DefenseSystem = "REGENERATION"
	SystemMicrobiome    DefenseSystem = "MICROBIOME"
	SystemDNAProtection DefenseSystem = "DNA_PROTECTION"
	SystemImmunity      DefenseSystem = "IMMUNITY"
)

// DefenseSystems перечисляет системы в каноническом порядке.
// Порядок важен: он задаёт порядок в отчётах и правила выбора при равенстве.
var DefenseSystems = []DefenseSystem{
	SystemAngiogenesis,
	SystemRegeneration,
	SystemMicrobiome,
	SystemDNAProtection,
	SystemImmunity,
}

// FoodsPerSystemGoal задаёт дневную цель уникальных продуктов на систему.
const FoodsPerSystemGoal = 5

var systemNames = map[DefenseSystem]string{
	SystemAngiogenesis:  "Angiogenesis",
	SystemRegeneration:  "Regeneration",
	SystemMicrobiome:    "Microbiome",
	SystemDNAProtection: "DNA Protection",
	SystemImmunity:      "Immunity",
}

// Valid сообщает, входит ли значение в фиксированный набор систем.
func (s DefenseSystem) Valid() bool {
	_, ok := systemNames[s]
	return ok
}

// DisplayName возвращает имя системы для текстов.
func (s DefenseSystem) DisplayName() string {
	if name, ok := systemNames[s]; ok {
		return name
	}
	return string(s)
}

// ParseDefenseSystem разбирает системное имя без учёта регистра.
func ParseDefenseSystem(raw string) (DefenseSystem, bool) {
	candidate := DefenseSystem(strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))))
	if !candidate.Valid() {
		return "", false
	}
	return candidate, true
}

// MealTime описывает слот приёма пищи.
type MealTime string

const (
	MealBreakfast MealTime = "BREAKFAST"
	MealLunch     MealTime = "LUNCH"
	MealDinner    MealTime = "DINNER"
	MealSnack     MealTime = "SNACK"
)

// MealTimes перечисляет слоты в каноническом порядке.
var MealTimes = []MealTime{MealBreakfast, MealLunch, MealDinner, MealSnack}

// Valid сообщает, является ли слот известным.
func (m MealTime) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// IsCore сообщает, что слот основной: завтрак, обед или ужин.
func (m MealTime) IsCore() bool {
	return m == MealBreakfast || m == MealLunch || m == MealDinner
}

// DisplayName возвращает имя слота в нижнем регистре.
func (m MealTime) DisplayName() string {
	return strings.ToLower(string(m))
}

// ParseMealTime разбирает слот без учёта регистра.
func ParseMealTime(raw string) (MealTime, bool) {
	candidate := MealTime(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", false
	}
	return candidate, true
}
