package capture

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EventDateLayout is the wire format for the StartDate and EndDate fields
// derived from a free-form EventDate string.
const EventDateLayout = "2006-01-02"

// monthsByPrefix resolves the first three letters of a month name, which
// covers both abbreviated ("Jun", "Sept.") and full ("June") spellings.
var monthsByPrefix = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// monthDayRe matches one "month day" token, e.g. "Jun 13" or "September 2".
// Trailing noise such as weekday annotations ("(Fri)") carries no digits and
// stays unmatched.
var monthDayRe = regexp.MustCompile(`([A-Za-z]{3,9})\.?\s+(\d{1,2})`)

// ParseEventDateRange extracts the start and end dates from a free-form
// event date string such as "Jun 13 (Fri) - Jun 23 (Mon)". A string with a
// single month-day token yields start == end. The given year anchors both
// dates; a range that wraps past December rolls the end date into the next
// year. Returns an error when no month-day token is present or a token
// names an unknown month or impossible day.
func ParseEventDateRange(raw string, year int) (start, end time.Time, err error) {
	matches := monthDayRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("no month-day token in %q", raw)
	}
	start, err = monthDay(matches[0], year)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = start
	if len(matches) > 1 {
		end, err = monthDay(matches[len(matches)-1], year)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		end = end.AddDate(1, 0, 0)
	}
	return start, end, nil
}

func monthDay(match []string, year int) (time.Time, error) {
	name := strings.ToLower(match[1])
	if len(name) > 3 {
		name = name[:3]
	}
	month, ok := monthsByPrefix[name]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", match[1])
	}
	day, err := strconv.Atoi(match[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid day %q", match[2])
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}
