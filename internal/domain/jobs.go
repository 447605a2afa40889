package domain

import (
	"context"
	"strings"
	"time"
)

// ConsumptionLogged приходит от подсистемы логирования при новой записи потребления.
// Date и Dates содержат календарные дни в формате YYYY-MM-DD в поясе пользователя.
type ConsumptionLogged struct {
	UserID   string    `json:"user_id"`
	Date     string    `json:"date,omitempty"`
	Dates    []string  `json:"dates,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

// Days возвращает все затронутые календарные дни сообщения.
// Нераспознанные строки пропускаются. Для старых продюсеров принимается и RFC3339.
func (m ConsumptionLogged) Days() []time.Time {
	days := make([]time.Time, 0, len(m.Dates)+1)
	for _, raw := range append([]string{m.Date}, m.Dates...) {
		if day, ok := parseDay(raw); ok {
			days = append(days, day)
		}
	}
	return days
}

func parseDay(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if day, err := time.Parse(time.DateOnly, raw); err == nil {
		return day, true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	y, mo, d := at.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), true
}

// ConsumptionQueue описывает очередь уведомлений о записях потребления.
type ConsumptionQueue interface {
	Enqueue(ctx context.Context, msg ConsumptionLogged) error
	Receive(ctx context.Context) (ConsumptionLogged, AckFunc, error)
}

// AckFunc подтверждает обработку или просит повторную доставку сообщения.
type AckFunc func(success bool) error
