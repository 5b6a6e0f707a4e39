package utils

import "time"

func TimeNowUTC() time.Time {
	return time.Now().UTC()
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysUntil returns the number of whole days from now until t, never negative.
func DaysUntil(now, t time.Time) int {
	if !t.After(now) {
		return 0
	}
	return int(t.Sub(now).Hours() / 24)
}
