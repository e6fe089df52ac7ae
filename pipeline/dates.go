package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Date values before this are treated as data-entry noise (years typed as
// 1900, Excel epoch leaks) and ignored for range aggregation.
var minValidDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// dateLayouts are tried in order; day-first slash dates are the common
// hand-entered format in country tables.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
}

// ParseDate parses a date cell. The error carries the raw value.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// ISODate renders a timestamp as an ISO date string, "" for the zero time.
func ISODate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// Matches resource names like
// "afghanistan-3w-operational-presence-april-june-2025.csv".
var datesInFilename = regexp.MustCompile(`([a-zA-Z]+)[\s\-_]+(?:to)?[\s\-_]*([a-zA-Z]+)[\s\-_]+(\d{4})`)

var monthLayouts = []string{"January 2006", "Jan 2006"}

func parseMonth(month, year string) (time.Time, error) {
	month = strings.ToLower(month)
	if month != "" {
		month = strings.ToUpper(month[:1]) + month[1:]
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, month+" "+year); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable month %q %s", month, year)
}

// DatesFromResourceName extracts a month range from a resource filename.
// Returns the first day of the start month and the last day of the end
// month. ok is false when the name carries no recognizable range; err is
// non-nil when a range was found but could not be parsed.
func DatesFromResourceName(name string) (start, end time.Time, ok bool, err error) {
	match := datesInFilename.FindStringSubmatch(name)
	if match == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	startMonth, endMonth, year := match[1], match[2], match[3]
	start, err = parseMonth(startMonth, year)
	if err != nil {
		return time.Time{}, time.Time{}, true, err
	}
	end, err = parseMonth(endMonth, year)
	if err != nil {
		return time.Time{}, time.Time{}, true, err
	}
	end = end.AddDate(0, 1, -1) // last day of the end month
	return start, end, true, nil
}
