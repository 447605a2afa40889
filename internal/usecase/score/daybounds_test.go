package score

import (
	"testing"
	"time"
)

func TestDayBoundsAcrossDST(t *testing.T) {
	cases := []struct {
		name   string
		tz     string
		day    time.Time
		start  time.Time
		length time.Duration
	}{
		{
			name:   "spring forward New York",
			tz:     "America/New_York",
			day:    time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			start:  time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC),
			length: 23 * time.Hour,
		},
		{
			name:   "fall back New York",
			tz:     "America/New_York",
			day:    time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC),
			start:  time.Date(2024, 11, 3, 4, 0, 0, 0, time.UTC),
			length: 25 * time.Hour,
		},
		{
			name:   "spring forward Amsterdam",
			tz:     "Europe/Amsterdam",
			day:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			start:  time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC),
			length: 23 * time.Hour,
		},
		{
			name:   "plain UTC",
			tz:     "",
			day:    time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC),
			start:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			length: 24 * time.Hour,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, to := DayBounds(tc.day, ResolveLocation(tc.tz))
			if !from.Equal(tc.start) {
				t.Fatalf("начало дня %v, ожидали %v", from, tc.start)
			}
			if to.Sub(from) != tc.length {
				t.Fatalf("длина дня %v, ожидали %v", to.Sub(from), tc.length)
			}
			if from.Location() != time.UTC || to.Location() != time.UTC {
				t.Fatalf("границы должны быть в UTC")
			}
		})
	}
}

func TestResolveLocationDefaultsToUTC(t *testing.T) {
	for _, name := range []string{"", "  ", "Nowhere/Land"} {
		if loc := ResolveLocation(name); loc != time.UTC {
			t.Fatalf("для %q ожидали UTC, получили %v", name, loc)
		}
	}
}

func TestCanonicalDay(t *testing.T) {
	loc := ResolveLocation("Asia/Tokyo")
	late := time.Date(2024, 1, 2, 23, 59, 0, 0, loc)
	got := CanonicalDay(late)
	want := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}
	if !LocalDay(late.UTC(), loc).Equal(want) {
		t.Fatalf("LocalDay должен учитывать пояс пользователя")
	}
}

func TestParseDate(t *testing.T) {
	day, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if day.Hour() != 12 || day.Day() != 29 {
		t.Fatalf("ожидали полдень 29 февраля, получили %v", day)
	}
	if _, err := ParseDate("29.02.2024"); err == nil {
		t.Fatalf("ожидали ошибку формата")
	}
}
