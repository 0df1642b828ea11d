package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DurationUnit is the unit of a relative-duration expression.
type DurationUnit int

const (
	UnitDays DurationUnit = iota
	UnitMonths
)

var durationUnits = map[string]DurationUnit{
	"day":    UnitDays,
	"days":   UnitDays,
	"month":  UnitMonths,
	"months": UnitMonths,
}

// RelativeDuration is a threshold expressed relative to "now", e.g. 7_days
// or 2_months.
type RelativeDuration struct {
	Count int
	Unit  DurationUnit
}

func (d RelativeDuration) String() string {
	unit := "days"
	if d.Unit == UnitMonths {
		unit = "months"
	}
	return fmt.Sprintf("%d_%s", d.Count, unit)
}

// ParseRelativeDuration parses expressions of the form <integer>_<unit>
// with unit days or months (singular forms accepted).
func ParseRelativeDuration(s string) (RelativeDuration, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "_", 2)
	if len(parts) != 2 {
		return RelativeDuration{}, fmt.Errorf("expected <n>_<unit>, got %q", s)
	}
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return RelativeDuration{}, fmt.Errorf("bad count %q", parts[0])
	}
	if count <= 0 {
		return RelativeDuration{}, fmt.Errorf("count must be positive, got %d", count)
	}
	unit, ok := durationUnits[parts[1]]
	if !ok {
		return RelativeDuration{}, fmt.Errorf("unsupported unit %q", parts[1])
	}
	return RelativeDuration{Count: count, Unit: unit}, nil
}

// Threshold returns now minus the duration. Months subtract calendar
// months, clamping the day when the target month is shorter (Mar 31 minus
// one month is Feb 28, or 29 in a leap year). time.AddDate is unsuitable
// here because it normalizes the overflow forward instead of clamping.
func (d RelativeDuration) Threshold(now time.Time) time.Time {
	if d.Unit == UnitDays {
		return now.AddDate(0, 0, -d.Count)
	}
	months := int(now.Month()) - 1 - d.Count
	year := now.Year() + months/12
	months %= 12
	if months < 0 {
		months += 12
		year--
	}
	month := time.Month(months + 1)
	day := now.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(
		year, month, day,
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(),
		now.Location(),
	)
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
