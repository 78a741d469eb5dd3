package capture

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("id-%04d", s.n), nil
}

type failIDs struct{}

func (failIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

var testNow = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return NewNormalizer(&seqIDs{}, fakeClock{now: testNow}, nil, nil)
}

func TestCleanValueStripsKeysAtAnyDepth(t *testing.T) {
	in := map[string]any{
		"position": 1,
		"Position": "first",
		"POSITION": "screams",
		"_STATUS":  "ok",
		"Title":    "keep me",
		"nested": map[string]any{
			"_STATUS": "nested status",
			"Link":    "https://example.com",
			"deeper": []any{
				map[string]any{
					"position": 9,
					"Name":     "still here",
				},
			},
		},
	}

	out, ok := cleanValue(in).(map[string]any)
	require.True(t, ok)

	require.NotContains(t, out, "position")
	require.NotContains(t, out, "Position")
	require.NotContains(t, out, "POSITION")
	require.NotContains(t, out, "_STATUS")
	require.Equal(t, "keep me", out["Title"])

	nested := out["nested"].(map[string]any)
	require.NotContains(t, nested, "_STATUS")
	require.Equal(t, "https://example.com", nested["Link"])

	deep := nested["deeper"].([]any)[0].(map[string]any)
	require.NotContains(t, deep, "position")
	require.Equal(t, "still here", deep["Name"])

	// The input itself stays untouched.
	require.Contains(t, in, "_STATUS")
	require.Contains(t, in["nested"].(map[string]any), "_STATUS")
}

func TestCleanValueKeepsNearMisses(t *testing.T) {
	in := map[string]any{
		"IMG_STATUS":  "not an exact match",
		"positioning": "not the whole word",
		"status":      "lowercase is a different key",
	}
	out := cleanValue(in).(map[string]any)
	require.Len(t, out, 3)
}

func TestCleanValueScalars(t *testing.T) {
	require.Equal(t, "s", cleanValue("s"))
	require.Equal(t, 3.5, cleanValue(3.5))
	require.Equal(t, true, cleanValue(true))
	require.Nil(t, cleanValue(nil))
}

func TestNormalizeSectionWrapsCategories(t *testing.T) {
	n := newTestNormalizer(t)

	section := map[string]any{
		"headline": "plain scalar stays",
		"Headlines": []any{
			map[string]any{"Title": "A", "Link": "l1", "position": 1},
			map[string]any{"Link": "l2", "_STATUS": "scraped"},
		},
	}

	out := n.NormalizeSection(section, "espn.com", "https://www.espn.com")

	require.Equal(t, "plain scalar stays", out["headline"])

	items := out["Headlines"].([]any)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	require.Equal(t, "id-0001", first["uid"])
	require.Equal(t, "A", first["Title"], "element's own Title wins over the category name")
	require.Equal(t, "https://www.espn.com", first["originUrl"])
	require.Equal(t, testNow.Format(time.RFC3339), first["createdAt"])
	require.Equal(t, "", first["Image"])
	require.NotContains(t, first, "position")

	second := items[1].(map[string]any)
	require.Equal(t, "id-0002", second["uid"])
	require.Equal(t, "Headlines", second["Title"], "category name fills a missing Title")
	require.NotContains(t, second, "_STATUS")
}

func TestNormalizeSectionScalarElements(t *testing.T) {
	n := newTestNormalizer(t)

	out := n.NormalizeSection(map[string]any{
		"Tags": []any{"nfl", "draft"},
	}, "espn.com", "https://espn.com")

	items := out["Tags"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	require.Equal(t, "nfl", first["Value"])
	require.Equal(t, "Tags", first["Title"])
}

func TestNormalizeSectionImageHandling(t *testing.T) {
	n := newTestNormalizer(t)

	out := n.NormalizeSection(map[string]any{
		"Cards": []any{
			map[string]any{"Title": "with query", "Image": "https://cdn.example.com/a.jpg?w=640&h=480"},
			map[string]any{"Title": "clean url", "Image": "https://cdn.example.com/b.jpg"},
			map[string]any{"Title": "absent"},
		},
	}, "example.com", "https://example.com")

	items := out["Cards"].([]any)
	require.Equal(t, "https://cdn.example.com/a.jpg", items[0].(map[string]any)["Image"])
	require.Equal(t, "https://cdn.example.com/b.jpg", items[1].(map[string]any)["Image"])
	require.Equal(t, "", items[2].(map[string]any)["Image"])
}

func TestNormalizeSectionEventEnrichment(t *testing.T) {
	t.Run("recognized site by key", func(t *testing.T) {
		n := newTestNormalizer(t)
		out := n.NormalizeSection(map[string]any{
			"Games": []any{
				map[string]any{"Title": "Finals", "EventDate": "Jun 13 (Fri) - Jun 23 (Mon)"},
			},
		}, "espn.com", "https://espn.com")

		item := out["Games"].([]any)[0].(map[string]any)
		require.Equal(t, "2026-06-13", item["StartDate"])
		require.Equal(t, "2026-06-23", item["EndDate"])
	})

	t.Run("recognized site by category", func(t *testing.T) {
		n := newTestNormalizer(t)
		out := n.NormalizeSection(map[string]any{
			"OlympicsSchedule": []any{
				map[string]any{"EventDate": "Feb 6"},
			},
		}, "example.com", "https://example.com")

		item := out["OlympicsSchedule"].([]any)[0].(map[string]any)
		require.Equal(t, "2026-02-06", item["StartDate"])
		require.Equal(t, "2026-02-06", item["EndDate"], "single date sets both ends")
	})

	t.Run("unrecognized site adds nothing", func(t *testing.T) {
		n := newTestNormalizer(t)
		out := n.NormalizeSection(map[string]any{
			"Games": []any{
				map[string]any{"EventDate": "Jun 13 - Jun 23"},
			},
		}, "example.com", "https://example.com")

		item := out["Games"].([]any)[0].(map[string]any)
		require.NotContains(t, item, "StartDate")
		require.NotContains(t, item, "EndDate")
	})

	t.Run("unparsable date is swallowed", func(t *testing.T) {
		n := newTestNormalizer(t)
		require.NotPanics(t, func() {
			out := n.NormalizeSection(map[string]any{
				"Games": []any{
					map[string]any{"EventDate": "TBD"},
				},
			}, "espn.com", "https://espn.com")

			item := out["Games"].([]any)[0].(map[string]any)
			require.NotContains(t, item, "StartDate")
			require.NotContains(t, item, "EndDate")
		})
	})

	t.Run("configured extra site", func(t *testing.T) {
		n := NewNormalizer(&seqIDs{}, fakeClock{now: testNow}, []string{"ticketmaster"}, nil)
		out := n.NormalizeSection(map[string]any{
			"Shows": []any{
				map[string]any{"EventDate": "Aug 1 - Aug 3"},
			},
		}, "ticketmaster.com", "https://ticketmaster.com")

		item := out["Shows"].([]any)[0].(map[string]any)
		require.Equal(t, "2026-08-01", item["StartDate"])
		require.Equal(t, "2026-08-03", item["EndDate"])
	})
}

func TestNormalizeSectionUIDFallback(t *testing.T) {
	n := NewNormalizer(failIDs{}, fakeClock{now: testNow}, nil, nil)

	out := n.NormalizeSection(map[string]any{
		"Headlines": []any{map[string]any{"Title": "A"}},
	}, "espn.com", "https://espn.com")

	item := out["Headlines"].([]any)[0].(map[string]any)
	uid, ok := item["uid"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(uid, "Headlines-"), "fallback uid is category-scoped, got %q", uid)
}

func TestNormalizeSectionDoesNotModifyInput(t *testing.T) {
	n := newTestNormalizer(t)

	section := map[string]any{
		"Headlines": []any{
			map[string]any{"Title": "A", "position": 1},
		},
	}

	_ = n.NormalizeSection(section, "espn.com", "https://espn.com")

	el := section["Headlines"].([]any)[0].(map[string]any)
	require.Contains(t, el, "position")
	require.NotContains(t, el, "uid")
	require.NotContains(t, el, "Image")
}
