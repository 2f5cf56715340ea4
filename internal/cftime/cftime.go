// Package cftime encodes monthly timestamps in the CF "noleap" calendar,
// which has 365 days every year.
package cftime

import (
	"fmt"
	"time"
)

const (
	// Units is the CF units string for every time value this package produces.
	Units = "days since 1850-01-01"
	// Calendar is the CF calendar name.
	Calendar = "noleap"

	epochYear = 1850
)

// cumulative day-of-year at the start of each month in a 365-day year
var monthStart = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// DaysSince1850NoLeap returns the number of days from 1850-01-01 to the
// first day of the month in the noleap calendar.
func DaysSince1850NoLeap(year int, month time.Month) (float64, error) {
	if month < time.January || month > time.December {
		return 0, fmt.Errorf("month must be between 1 and 12, got %d", int(month))
	}
	return float64((year-epochYear)*365 + monthStart[month]), nil
}

// MonthBounds returns the [start, end) interval of the month, in Units.
// December ends on the first of January of the next year.
func MonthBounds(year int, month time.Month) ([2]float64, error) {
	start, err := DaysSince1850NoLeap(year, month)
	if err != nil {
		return [2]float64{}, err
	}
	ny, nm := year, month+1
	if month == time.December {
		ny, nm = year+1, time.January
	}
	end, err := DaysSince1850NoLeap(ny, nm)
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{start, end}, nil
}
