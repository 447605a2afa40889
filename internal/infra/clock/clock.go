package clock

import "time"

// Real отдаёт системное время в UTC.
type Real struct{}

// Now реализует domain.Clock.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fixed всегда отдаёт заданный момент. Используется в тестах и демо-режиме.
type Fixed struct {
	At time.Time
}

// Now реализует domain.Clock.
func (f *Fixed) Now() time.Time {
	return f.At
}

// Advance сдвигает часы вперёд.
func (f *Fixed) Advance(d time.Duration) {
	f.At = f.At.Add(d)
}
