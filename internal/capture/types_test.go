package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskSourceURL(t *testing.T) {
	testCases := []struct {
		name     string
		task     *Task
		expected string
	}{
		{
			"originUrl preferred",
			&Task{InputParameters: map[string]any{
				"url":       "https://b.example.com",
				"originUrl": "https://a.example.com",
			}},
			"https://a.example.com",
		},
		{
			"url second choice",
			&Task{InputParameters: map[string]any{
				"zzz": "https://c.example.com",
				"url": "https://b.example.com",
			}},
			"https://b.example.com",
		},
		{
			"lexicographically first fallback",
			&Task{InputParameters: map[string]any{
				"pageUrl":   "https://page.example.com",
				"startFrom": "https://start.example.com",
			}},
			"https://page.example.com",
		},
		{
			"non-string values skipped",
			&Task{InputParameters: map[string]any{
				"avg": 12.5,
				"url": "https://b.example.com",
			}},
			"https://b.example.com",
		},
		{
			"whitespace trimmed",
			&Task{InputParameters: map[string]any{
				"originUrl": "  https://a.example.com  ",
			}},
			"https://a.example.com",
		},
		{"no parameters", &Task{}, ""},
		{"nil task", nil, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.task.SourceURL())
		})
	}
}

func TestTaskSections(t *testing.T) {
	task := &Task{
		CapturedTexts: map[string]any{"headline": "h"},
		CapturedLists: map[string]any{"Headlines": []any{}},
	}

	sections := task.Sections()
	require.Len(t, sections, 2)
	require.Contains(t, sections, CollectionTexts)
	require.Contains(t, sections, CollectionLists)
	require.NotContains(t, sections, CollectionScreenshots, "empty sections are omitted")

	require.Nil(t, (*Task)(nil).Sections())
}

func TestKnownCollection(t *testing.T) {
	for _, c := range Collections() {
		require.True(t, KnownCollection(c))
	}
	require.False(t, KnownCollection("captured_other"))
	require.False(t, KnownCollection(""))
}
