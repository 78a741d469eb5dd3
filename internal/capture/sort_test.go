package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestItemTime(t *testing.T) {
	testCases := []struct {
		name     string
		item     any
		expected time.Time
	}{
		{
			"publishedDate wins",
			map[string]any{
				"publishedDate": "2026-08-20T10:00:00Z",
				"createdAt":     "2026-08-25T10:00:00Z",
			},
			time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		},
		{
			"createdAt fallback",
			map[string]any{"createdAt": "2026-08-25T10:00:00Z"},
			time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		},
		{
			"createdAtFormatted date only",
			map[string]any{"createdAtFormatted": "2026-08-25"},
			time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
		},
		{
			"epoch seconds",
			map[string]any{"publishedDate": 1700000000.0},
			time.Unix(1700000000, 0).UTC(),
		},
		{
			"epoch milliseconds",
			map[string]any{"publishedDate": 1700000000000.0},
			time.UnixMilli(1700000000000).UTC(),
		},
		{
			"numeric string",
			map[string]any{"createdAt": "1700000000"},
			time.Unix(1700000000, 0).UTC(),
		},
		{
			"unparseable falls through to next field",
			map[string]any{
				"publishedDate": "yesterday-ish",
				"createdAt":     "2026-08-25T10:00:00Z",
			},
			time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		},
		{
			"no date fields",
			map[string]any{"Title": "A"},
			time.Unix(0, 0).UTC(),
		},
		{
			"not a map",
			"scalar",
			time.Unix(0, 0).UTC(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.True(t, tc.expected.Equal(ItemTime(tc.item)),
				"ItemTime = %v, want %v", ItemTime(tc.item), tc.expected)
		})
	}
}

func TestSortItemsByRecency(t *testing.T) {
	items := []any{
		map[string]any{"Title": "old", "createdAt": "2026-01-01T00:00:00Z"},
		map[string]any{"Title": "undated-1"},
		map[string]any{"Title": "new", "publishedDate": "2026-08-25T00:00:00Z"},
		map[string]any{"Title": "undated-2"},
		map[string]any{"Title": "mid", "createdAt": "2026-06-01T00:00:00Z"},
	}

	out := SortItemsByRecency(items)

	titles := make([]string, len(out))
	for i, it := range out {
		titles[i] = it.(map[string]any)["Title"].(string)
	}
	require.Equal(t, []string{"new", "mid", "old", "undated-1", "undated-2"}, titles,
		"newest first, undated items keep stored order at the tail")

	// The stored slice keeps its order.
	require.Equal(t, "old", items[0].(map[string]any)["Title"])
}

func TestCategoryNames(t *testing.T) {
	data := map[string]any{
		"Scores":    []any{},
		"Headlines": []any{map[string]any{"Title": "A"}},
		"headline":  "scalar",
		"meta":      map[string]any{"v": 1.0},
	}
	require.Equal(t, []string{"Headlines", "Scores"}, CategoryNames(data))
	require.Empty(t, CategoryNames(nil))
}
