package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DurationUnit is the calendar unit of a subscription duration.
type DurationUnit string

const (
	DurationUnitDay   DurationUnit = "day"
	DurationUnitMonth DurationUnit = "month"
	DurationUnitYear  DurationUnit = "year"
)

// ParseDurationUnit accepts singular or plural unit names in any case.
func ParseDurationUnit(value string) (DurationUnit, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "day", "days":
		return DurationUnitDay, nil
	case "month", "months":
		return DurationUnitMonth, nil
	case "year", "years":
		return DurationUnitYear, nil
	default:
		return "", fmt.Errorf("unknown duration unit %q", value)
	}
}

// Duration is a count of calendar units. A count of zero or less is
// unlimited and never expires.
type Duration struct {
	Count int
	Unit  DurationUnit
}

// IsUnlimited reports whether the duration never expires.
func (d Duration) IsUnlimited() bool {
	return d.Count <= 0
}

// Validate rejects negative counts and unknown units on limited durations.
func (d Duration) Validate() error {
	if d.Count < 0 {
		return fmt.Errorf("duration count must not be negative")
	}
	if d.Count == 0 {
		return nil
	}
	switch d.Unit {
	case DurationUnitDay, DurationUnitMonth, DurationUnitYear:
		return nil
	default:
		return fmt.Errorf("unknown duration unit %q", d.Unit)
	}
}

func (d Duration) String() string {
	if d.IsUnlimited() {
		return "unlimited"
	}
	unit := string(d.Unit)
	if d.Count != 1 {
		unit += "s"
	}
	return strconv.Itoa(d.Count) + " " + unit
}

// CalculateExpiration returns the end of day (23:59:59, in from's location)
// that lies d after from. It returns false for unlimited durations.
//
// Month and year arithmetic never spills into the following month: the day
// clamps to the last day of the target month, and a from on the last day of
// its month lands on the last day of the target month.
func CalculateExpiration(d Duration, from time.Time) (time.Time, bool) {
	if d.IsUnlimited() {
		return time.Time{}, false
	}
	y, m, day := from.Date()
	switch d.Unit {
	case DurationUnitDay:
		return endOfDay(y, m, day+d.Count, from.Location()), true
	case DurationUnitMonth:
		ty, tm, td := addMonths(y, m, day, d.Count)
		return endOfDay(ty, tm, td, from.Location()), true
	case DurationUnitYear:
		ty, tm, td := addMonths(y, m, day, 12*d.Count)
		return endOfDay(ty, tm, td, from.Location()), true
	default:
		return time.Time{}, false
	}
}

func addMonths(year int, month time.Month, day int, months int) (int, time.Month, int) {
	total := int(month) - 1 + months
	targetYear := year + total/12
	targetMonth := time.Month(total%12 + 1)
	last := daysIn(targetYear, targetMonth)
	if day > last || day == daysIn(year, month) {
		day = last
	}
	return targetYear, targetMonth, day
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func endOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, month, day, 23, 59, 59, 0, loc)
}
