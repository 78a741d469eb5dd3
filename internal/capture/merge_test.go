package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeData(t *testing.T) {
	t.Run("no existing document", func(t *testing.T) {
		incoming := map[string]any{
			"Headlines": []any{
				map[string]any{"Title": "A"},
				map[string]any{"Title": "A"},
			},
			"count": 2.0,
		}
		out := MergeData(nil, incoming)
		require.Len(t, out["Headlines"], 1, "within-batch dedup applies on first write")
		require.Equal(t, 2.0, out["count"])
	})

	t.Run("existing items stay as prefix, new as suffix", func(t *testing.T) {
		existing := map[string]any{
			"Headlines": []any{
				map[string]any{"Title": "A"},
				map[string]any{"Title": "B"},
			},
		}
		incoming := map[string]any{
			"Headlines": []any{
				map[string]any{"Title": "B", "Link": "rescraped"},
				map[string]any{"Title": "C"},
				map[string]any{"Title": "D"},
			},
		}

		out := MergeData(existing, incoming)
		items := out["Headlines"].([]any)
		require.Len(t, items, 4)
		require.Equal(t, "A", items[0].(map[string]any)["Title"])
		require.Equal(t, "B", items[1].(map[string]any)["Title"])
		require.NotContains(t, items[1].(map[string]any), "Link", "stored duplicate is kept, not replaced")
		require.Equal(t, "C", items[2].(map[string]any)["Title"])
		require.Equal(t, "D", items[3].(map[string]any)["Title"])
	})

	t.Run("merging the same batch twice is idempotent", func(t *testing.T) {
		batch := func() map[string]any {
			return map[string]any{
				"Headlines": []any{
					map[string]any{"Title": "A", "EventDate": "Jun 13", "Location": "NY", "Sports": "NBA"},
					map[string]any{"Title": "B"},
				},
			}
		}

		once := MergeData(nil, batch())
		twice := MergeData(once, batch())
		require.Len(t, twice["Headlines"], 2)

		withNew := batch()
		withNew["Headlines"] = append(withNew["Headlines"].([]any), map[string]any{"Title": "C"})
		third := MergeData(twice, withNew)
		require.Len(t, third["Headlines"], 3, "exactly the one genuinely new item appends")
	})

	t.Run("scalars and objects overwritten", func(t *testing.T) {
		existing := map[string]any{
			"headline": "old",
			"meta":     map[string]any{"v": 1.0},
		}
		incoming := map[string]any{
			"headline": "new",
			"meta":     map[string]any{"v": 2.0},
		}
		out := MergeData(existing, incoming)
		require.Equal(t, "new", out["headline"])
		require.Equal(t, map[string]any{"v": 2.0}, out["meta"])
	})

	t.Run("untouched categories carried over", func(t *testing.T) {
		existing := map[string]any{
			"Headlines": []any{map[string]any{"Title": "A"}},
			"note":      "kept",
		}
		incoming := map[string]any{
			"Scores": []any{map[string]any{"Title": "S"}},
		}
		out := MergeData(existing, incoming)
		require.Len(t, out["Headlines"], 1)
		require.Equal(t, "kept", out["note"])
		require.Len(t, out["Scores"], 1)
	})

	t.Run("array replaces a scalar field", func(t *testing.T) {
		existing := map[string]any{"Headlines": "used to be a scalar"}
		incoming := map[string]any{"Headlines": []any{map[string]any{"Title": "A"}}}
		out := MergeData(existing, incoming)
		require.Len(t, out["Headlines"], 1)
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		existing := map[string]any{
			"Headlines": []any{map[string]any{"Title": "A"}},
		}
		incoming := map[string]any{
			"Headlines": []any{map[string]any{"Title": "B"}},
		}
		_ = MergeData(existing, incoming)
		require.Len(t, existing["Headlines"], 1)
		require.Len(t, incoming["Headlines"], 1)
	})
}
