// Package markethours provides US equity session helpers used by the
// simulated brokerage clock and offline tooling.
package markethours

import "time"

// ET is the exchange timezone. A fixed offset keeps simulated clocks
// deterministic; live session times come from the broker clock, not from
// this package.
var ET = time.FixedZone("ET", -5*3600)

// Regular session bounds in exchange time.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// IsMarketOpen returns true if t falls within regular trading hours
// (9:30 AM - 4:00 PM ET, Mon-Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	et := t.In(ET)
	if !IsTradingDay(et) {
		return false
	}
	hm := et.Hour()*60 + et.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday returns true if t is Mon-Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(ET).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	et := t.In(ET)
	return IsWeekday(et) && !IsHoliday(et)
}

// NextOpen returns the next market open. If t is before today's open on a
// trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	et := t.In(ET)

	todayOpen := time.Date(et.Year(), et.Month(), et.Day(), OpenHour, OpenMinute, 0, 0, ET)
	if et.Before(todayOpen) && IsTradingDay(et) {
		return todayOpen
	}

	d := et.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // holidays + weekends never exceed this
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, ET)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(et.Year(), et.Month(), et.Day()+1, OpenHour, OpenMinute, 0, 0, ET)
}

// NextClose returns the next market close: today's close if it has not
// passed on a trading day, otherwise the close of the next trading day.
func NextClose(t time.Time) time.Time {
	et := t.In(ET)

	todayClose := TodayClose(et)
	if et.Before(todayClose) && IsTradingDay(et) {
		return todayClose
	}

	next := NextOpen(et)
	return time.Date(next.Year(), next.Month(), next.Day(), CloseHour, CloseMinute, 0, 0, ET)
}

// TodayClose returns today's market close time (4:00 PM ET).
func TodayClose(t time.Time) time.Time {
	et := t.In(ET)
	return time.Date(et.Year(), et.Month(), et.Day(), CloseHour, CloseMinute, 0, 0, ET)
}
