package citation

import (
	"fmt"
	"strings"
	"time"
)

// Span is a calendar difference between two dates.
type Span struct {
	Negative  bool
	Years     int
	Months    int
	Days      int
	Precision Precision
}

// Between returns the calendar difference from cited to citing. Both dates
// are first truncated to the precision they have in common, so a component
// only appears when both dates carry it.
func Between(citing, cited Date) Span {
	p := citing.Precision
	if cited.Precision < p {
		p = cited.Precision
	}
	if p == PrecisionNone {
		return Span{}
	}

	later, earlier := citing.Truncate(p), cited.Truncate(p)
	negative := later.Before(earlier)
	if negative {
		later, earlier = earlier, later
	}

	// Whole months come first. Days are counted from earlier moved forward
	// by those months, with its day clamped to the length of that month.
	months := (later.Year-earlier.Year)*12 + later.Month - earlier.Month
	days := 0
	if p == PrecisionDay {
		anchor := addMonths(earlier, months)
		if later.Before(anchor) {
			months--
			anchor = addMonths(earlier, months)
		}
		days = daysBetween(anchor, later)
	}

	return Span{
		Negative:  negative,
		Years:     months / 12,
		Months:    months % 12,
		Days:      days,
		Precision: p,
	}
}

// addMonths moves a day-precision date by n months, clamping the day to
// the length of the resulting month.
func addMonths(d Date, n int) Date {
	total := d.Year*12 + d.Month - 1 + n
	out := Date{Year: total / 12, Month: total%12 + 1, Precision: d.Precision}
	out.Day = min(d.Day, daysIn(out.Year, out.Month))
	return out
}

func daysBetween(from, to Date) int {
	a := time.Date(from.Year, time.Month(from.Month), from.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year, time.Month(to.Month), to.Day, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// String renders the span as an ISO-8601-like duration ("P8Y3M",
// "-P1Y0M2D"). A span without precision renders as "".
func (s Span) String() string {
	if s.Precision == PrecisionNone {
		return ""
	}
	var b strings.Builder
	if s.Negative {
		b.WriteByte('-')
	}
	fmt.Fprintf(&b, "P%dY", s.Years)
	if s.Precision >= PrecisionMonth {
		fmt.Fprintf(&b, "%dM", s.Months)
	}
	if s.Precision >= PrecisionDay {
		fmt.Fprintf(&b, "%dD", s.Days)
	}
	return b.String()
}

// Timespan returns the duration between the cited and citing publication
// dates, or "" when either date is missing or unparseable.
func Timespan(citingPubDate, citedPubDate string) string {
	citing, err := ParseDate(citingPubDate)
	if err != nil {
		return ""
	}
	cited, err := ParseDate(citedPubDate)
	if err != nil {
		return ""
	}
	return Between(citing, cited).String()
}
