package calendar

import "time"

// Cell is one day in the month picker.
type Cell struct {
	Date     Date `json:"date"`
	InMonth  bool `json:"in_month"`
	Today    bool `json:"today"`
	Selected bool `json:"selected"`
	HasEvent bool `json:"has_event"`
}

// MonthDays returns the week-aligned days covering m: leading days from
// the previous month back to weekStart, every day of m, then trailing days
// up to the end of the last week. The result length is always a multiple
// of 7.
func MonthDays(m Month, weekStart time.Weekday) []Date {
	first := m.First()
	last := m.Last()

	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7
	trail := (int(weekStart) + 6 - int(last.Weekday()) + 7) % 7

	start := first.AddDays(-lead)
	total := lead + last.Day + trail

	days := make([]Date, 0, total)
	for i := 0; i < total; i++ {
		days = append(days, start.AddDays(i))
	}
	return days
}

// ParseWeekStart maps the config value to a weekday; anything but
// "monday" means Sunday.
func ParseWeekStart(s string) time.Weekday {
	if s == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// WeekdayLabels returns single-letter column headers starting at weekStart.
func WeekdayLabels(weekStart time.Weekday) []string {
	labels := make([]string, 7)
	for i := 0; i < 7; i++ {
		wd := time.Weekday((int(weekStart) + i) % 7)
		labels[i] = wd.String()[:1]
	}
	return labels
}
