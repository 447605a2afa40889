package score

import (
	"strings"
	"time"
)

// ResolveLocation возвращает часовой пояс пользователя или UTC, если он неизвестен.
func ResolveLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayBounds возвращает [локальная полночь, следующая локальная полночь) в UTC.
// Календарная дата берётся из day в его собственной зоне. time.Date нормализует
// несуществующую полночь при переходе на летнее время, поэтому день может длиться 23 или 25 часов.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// CanonicalDay приводит календарную дату к полудню UTC, ключу кэша.
func CanonicalDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// LocalDay возвращает каноничный день для момента времени в зоне loc.
func LocalDay(at time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CanonicalDay(at.In(loc))
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(raw string) (time.Time, error) {
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return CanonicalDay(day), nil
}
