package markethours

import "time"

// usHolidays lists full-day US equity market closures, keyed "YYYY-MM-DD"
// in exchange time. Half-days are treated as full sessions; the broker
// clock is authoritative for live trading.
var usHolidays = map[string]bool{
	// 2021
	"2021-01-01": true, // New Year's Day
	"2021-01-18": true, // Martin Luther King Jr. Day
	"2021-02-15": true, // Presidents' Day
	"2021-04-02": true, // Good Friday
	"2021-05-31": true, // Memorial Day
	"2021-07-05": true, // Independence Day (observed)
	"2021-09-06": true, // Labor Day
	"2021-11-25": true, // Thanksgiving
	"2021-12-24": true, // Christmas (observed)

	// 2022
	"2022-01-17": true, // Martin Luther King Jr. Day
	"2022-02-21": true, // Presidents' Day
	"2022-04-15": true, // Good Friday
	"2022-05-30": true, // Memorial Day
	"2022-06-20": true, // Juneteenth (observed)
	"2022-07-04": true, // Independence Day
	"2022-09-05": true, // Labor Day
	"2022-11-24": true, // Thanksgiving
	"2022-12-26": true, // Christmas (observed)
}

// IsHoliday returns true if t falls on a full-day market holiday.
func IsHoliday(t time.Time) bool {
	return usHolidays[t.In(ET).Format("2006-01-02")]
}
