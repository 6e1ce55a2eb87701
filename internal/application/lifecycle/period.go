package lifecycle

import "time"

// DayBounds returns [midnight(day), midnight(day+1)) in day's location
func DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// WeekBounds returns the Monday-to-Monday window containing day
func WeekBounds(day time.Time) (time.Time, time.Time) {
	start, _ := DayBounds(day)
	offset := (int(start.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// MonthBounds returns the first instant of the month and of the following month
func MonthBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
