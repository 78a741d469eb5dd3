package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupKey(t *testing.T) {
	testCases := []struct {
		name     string
		item     any
		expected string
	}{
		{
			"all identity fields",
			map[string]any{"Title": "A", "EventDate": "Jun 13", "Location": "NY", "Sports": "NBA"},
			"Title:A|EventDate:Jun 13|Location:NY|Sports:NBA",
		},
		{
			"subset keeps field order",
			map[string]any{"Location": "NY", "Title": "A"},
			"Title:A|Location:NY",
		},
		{
			"non-string values stringified",
			map[string]any{"Title": "A", "EventDate": 42.0},
			"Title:A|EventDate:42",
		},
		{
			"extra fields ignored",
			map[string]any{"Title": "A", "Link": "l1", "uid": "u-1"},
			"Title:A",
		},
		{
			"no identity fields",
			map[string]any{"Link": "l1", "uid": "u-1"},
			"",
		},
		{
			"not a map",
			"scalar item",
			"",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, DedupKey(tc.item))
		})
	}
}

func TestDedupBatch(t *testing.T) {
	t.Run("first occurrence wins", func(t *testing.T) {
		in := []any{
			map[string]any{"Title": "A", "Link": "first"},
			map[string]any{"Title": "B"},
			map[string]any{"Title": "A", "Link": "second"},
		}
		out := dedupBatch(in)
		require.Len(t, out, 2)
		require.Equal(t, "first", out[0].(map[string]any)["Link"])
		require.Equal(t, "B", out[1].(map[string]any)["Title"])
	})

	t.Run("keyless items never collapse", func(t *testing.T) {
		in := []any{
			map[string]any{"Link": "l1"},
			map[string]any{"Link": "l1"},
			map[string]any{"Link": "l1"},
		}
		require.Len(t, dedupBatch(in), 3)
	})

	t.Run("empty input", func(t *testing.T) {
		require.Empty(t, dedupBatch(nil))
	})
}

func TestFilterExisting(t *testing.T) {
	existing := []any{
		map[string]any{"Title": "A"},
		map[string]any{"Title": "B", "Location": "NY"},
	}

	t.Run("drops stored duplicates", func(t *testing.T) {
		in := []any{
			map[string]any{"Title": "A", "Link": "fresh scrape of an old item"},
			map[string]any{"Title": "C"},
		}
		out := filterExisting(in, existing)
		require.Len(t, out, 1)
		require.Equal(t, "C", out[0].(map[string]any)["Title"])
	})

	t.Run("location distinguishes items", func(t *testing.T) {
		in := []any{
			map[string]any{"Title": "B", "Location": "LA"},
		}
		out := filterExisting(in, existing)
		require.Len(t, out, 1)
	})

	t.Run("keyless items always pass", func(t *testing.T) {
		in := []any{
			map[string]any{"Link": "no identity"},
		}
		require.Len(t, filterExisting(in, existing), 1)
	})

	t.Run("no existing items", func(t *testing.T) {
		in := []any{map[string]any{"Title": "A"}}
		require.Len(t, filterExisting(in, nil), 1)
	})
}
