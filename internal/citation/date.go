// Package citation computes the derived attributes of a citation: creation
// date, timespan and the journal/author self-citation signals.
package citation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Precision is the granularity a publication date was recorded with.
type Precision int

// Date precisions, coarsest first.
const (
	PrecisionNone Precision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
)

// Date is a publication date of variable precision. Fields finer than the
// precision are zero.
type Date struct {
	Year      int
	Month     int
	Day       int
	Precision Precision
}

// ParseDate parses "YYYY", "YYYY-MM" or "YYYY-MM-DD". A day that does not
// exist in its month (e.g. 2019-02-29) falls back to the 28th. An empty
// string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}

	parts := strings.Split(s, "-")
	if len(parts) > 3 || len(parts[0]) != 4 {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("invalid year in %q: %w", s, err)
	}
	d := Date{Year: year, Precision: PrecisionYear}
	if len(parts) == 1 {
		return d, nil
	}

	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Date{}, fmt.Errorf("invalid month in %q", s)
	}
	d.Month = month
	d.Precision = PrecisionMonth
	if len(parts) == 2 {
		return d, nil
	}

	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return Date{}, fmt.Errorf("invalid day in %q", s)
	}
	if day > daysIn(year, month) {
		day = 28
	}
	d.Day = day
	d.Precision = PrecisionDay
	return d, nil
}

// IsZero reports whether no date is known.
func (d Date) IsZero() bool {
	return d.Precision == PrecisionNone
}

// Truncate drops every component finer than p.
func (d Date) Truncate(p Precision) Date {
	if p >= d.Precision {
		return d
	}
	out := Date{Precision: p}
	if p >= PrecisionYear {
		out.Year = d.Year
	}
	if p >= PrecisionMonth {
		out.Month = d.Month
	}
	return out
}

// Before reports whether d is strictly earlier than o, comparing only the
// components both carry.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// String renders the date with its own precision.
func (d Date) String() string {
	switch d.Precision {
	case PrecisionYear:
		return fmt.Sprintf("%04d", d.Year)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	case PrecisionDay:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	default:
		return ""
	}
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
