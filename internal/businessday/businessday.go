// Package businessday implements deadline arithmetic over Brazilian business
// days: weekends and the fixed national holidays are skipped. Moveable
// holidays (Carnival, Good Friday, Corpus Christi) are not part of the list.
package businessday

import "time"

// MaxDays bounds every business-day count accepted from callers, roughly
// fourteen years. AddBusinessDays walks one calendar day at a time.
const MaxDays = 3650

// MaxSpan bounds the calendar distance CountBusinessDays is asked to walk.
const MaxSpan = 2 * MaxDays * 24 * time.Hour

// Holiday is a fixed month/day pair observed every year.
type Holiday struct {
	Month time.Month
	Day   int
	Name  string
}

// NationalHolidays lists the fixed-date national holidays.
var NationalHolidays = []Holiday{
	{time.January, 1, "Confraternização Universal"},
	{time.April, 21, "Tiradentes"},
	{time.May, 1, "Dia do Trabalho"},
	{time.September, 7, "Independência do Brasil"},
	{time.October, 12, "Nossa Senhora Aparecida"},
	{time.November, 2, "Finados"},
	{time.November, 15, "Proclamação da República"},
	{time.December, 25, "Natal"},
}

// HolidayName returns the holiday falling on t's calendar date, if any.
func HolidayName(t time.Time) (string, bool) {
	_, m, d := t.Date()
	for _, h := range NationalHolidays {
		if h.Month == m && h.Day == d {
			return h.Name, true
		}
	}
	return "", false
}

func IsHoliday(t time.Time) bool {
	_, ok := HolidayName(t)
	return ok
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsBusinessDay reports whether t's calendar date is neither a weekend nor a holiday.
func IsBusinessDay(t time.Time) bool {
	return !IsWeekend(t) && !IsHoliday(t)
}

// AddBusinessDays returns the date n business days after start, keeping
// start's clock time and location. n <= 0 returns start unchanged.
func AddBusinessDays(start time.Time, n int) time.Time {
	d := start
	for added := 0; added < n; {
		d = d.AddDate(0, 0, 1)
		if IsBusinessDay(d) {
			added++
		}
	}
	return d
}

// CountBusinessDays counts the business days in the closed interval
// [from, to], comparing calendar dates in from's location. It returns 0
// when to falls before from.
func CountBusinessDays(from, to time.Time) int {
	day := truncate(from)
	last := truncate(to.In(from.Location()))
	count := 0
	for !day.After(last) {
		if IsBusinessDay(day) {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
