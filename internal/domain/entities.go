package domain

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// User описывает пользователя с точки зрения скоринга.
type User struct {
	ID                  string
	Timezone            string
	DietaryRestrictions []string
	CreatedAt           time.Time
}

// FoodItem описывает продукт из записи потребления с привязкой к защитным системам.
type FoodItem struct {
	Name    string          `json:"name"`
	Systems []DefenseSystem `json:"systems,omitempty"`
}

// ConsumptionEvent описывает неизменяемую запись о приёме пищи.
type ConsumptionEvent struct {
	ID         int64
	UserID     string
	ConsumedAt time.Time
	MealTime   MealTime
	Foods      []FoodItem
}

// DecodeFoodNames разбирает сырое поле foods из хранилища.
// Поддерживаются массив строк и массив объектов с полем name.
// Любой другой формат трактуется как пустой список.
func DecodeFoodNames(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return compactNames(plain)
	}
	var objects []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &objects); err == nil {
		names := make([]string, 0, len(objects))
		for _, obj := range objects {
			names = append(names, obj.Name)
		}
		return compactNames(names)
	}
	return nil
}

func compactNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
