package domain

import "time"

// UserLimit tracks per-user reward consumption for one UTC day.
// Day is formatted as "2006-01-02".
type UserLimit struct {
	UserID    string
	Day       string
	Views     int
	UpdatedAt time.Time
}

// DayKey renders t as the UTC day bucket used by the limits table.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
