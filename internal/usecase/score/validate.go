package score

import (
	"fmt"
	"time"

	"wellness-score/internal/domain"
)

// Validate проверяет собранный скор перед выдачей.
// При корректной формуле не срабатывает.
func Validate(s domain.Score5x5x5) error {
	if s.OverallScore < 0 || s.OverallScore > 100 {
		return fmt.Errorf("%w: overall score %d out of range", domain.ErrInvalidScore, s.OverallScore)
	}
	if s.FoodVariety.Score < 0 || s.FoodVariety.Score > 100 {
		return fmt.Errorf("%w: variety score %d out of range", domain.ErrInvalidScore, s.FoodVariety.Score)
	}
	if len(s.SystemScores) != len(domain.DefenseSystems) {
		return fmt.Errorf("%w: expected %d system scores, got %d", domain.ErrInvalidScore, len(domain.DefenseSystems), len(s.SystemScores))
	}
	if len(s.MealTimeScores) == 0 {
		return fmt.Errorf("%w: meal time scores missing", domain.ErrInvalidScore)
	}
	return nil
}

// Zero возвращает запасной нулевой скор для отображения при сбое.
func Zero(userID string, day time.Time) domain.Score5x5x5 {
	return Calculate(userID, CanonicalDay(day), nil)
}
