package recommend

import "time"

const minutesPerDay = 24 * 60

// MinuteOfDay возвращает минуту суток момента в зоне loc.
func MinuteOfDay(at time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	return local.Hour()*60 + local.Minute()
}

// WithinWindow сообщает, попадает ли минута в окно [start, end).
// Окно может переходить через полночь. start == end означает пустое окно.
func WithinWindow(minute, start, end int) bool {
	minute = normalizeMinute(minute)
	start = normalizeMinute(start)
	end = normalizeMinute(end)
	switch {
	case start == end:
		return false
	case start < end:
		return minute >= start && minute < end
	default:
		return minute >= start || minute < end
	}
}

// CooldownElapsed сообщает, прошло ли не меньше cooldown с момента last.
func CooldownElapsed(last *time.Time, now time.Time, cooldown time.Duration) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= cooldown
}

func normalizeMinute(m int) int {
	m %= minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return m
}
