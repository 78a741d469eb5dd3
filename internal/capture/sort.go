package capture

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// sortDateFields are consulted in order when ranking items by recency.
var sortDateFields = [...]string{"publishedDate", "createdAt", "createdAtFormatted"}

// itemTimeLayouts are the string layouts tried for a date field, most
// specific first.
var itemTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ItemTime returns the best-effort timestamp of an item: publishedDate,
// then createdAt, then createdAtFormatted, first parseable value wins.
// Numeric values are epoch seconds, or epoch milliseconds when too large
// to be seconds. Items without any parseable date rank as the epoch.
func ItemTime(item any) time.Time {
	m, ok := item.(map[string]any)
	if !ok {
		return time.Unix(0, 0).UTC()
	}
	for _, f := range sortDateFields {
		if ts, parsed := parseItemTime(m[f]); parsed {
			return ts
		}
	}
	return time.Unix(0, 0).UTC()
}

func parseItemTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range itemTimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return epochTime(n), true
		}
	case float64:
		return epochTime(val), true
	}
	return time.Time{}, false
}

// epochTime treats magnitudes beyond 1e12 as milliseconds, anything
// smaller as seconds.
func epochTime(n float64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

// SortItemsByRecency returns the items ordered newest first. The sort is
// stable, so undated items keep their stored relative order at the tail.
func SortItemsByRecency(items []any) []any {
	out := append([]any(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return ItemTime(out[i]).After(ItemTime(out[j]))
	})
	return out
}

// CategoryNames lists the array-valued fields of document data in sorted
// order.
func CategoryNames(data map[string]any) []string {
	names := make([]string, 0, len(data))
	for k, v := range data {
		if _, isArray := v.([]any); isArray {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
