package capture

import (
	"fmt"
	"strings"
)

// dedupFields are the identity fields of a captured item, in key order.
var dedupFields = [...]string{"Title", "EventDate", "Location", "Sports"}

// DedupKey builds the identity key of an item from whichever identity
// fields it carries, e.g. "Title:A|Location:NY". An item carrying none of
// them yields "" and is never deduplicated.
func DedupKey(item any) string {
	m, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(dedupFields))
	for _, f := range dedupFields {
		v, present := m[f]
		if !present {
			continue
		}
		parts = append(parts, f+":"+stringifyField(v))
	}
	return strings.Join(parts, "|")
}

func stringifyField(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// dedupBatch drops within-batch duplicates, first occurrence winning.
// Input order is preserved.
func dedupBatch(items []any) []any {
	seen := make(map[string]struct{}, len(items))
	out := make([]any, 0, len(items))
	for _, it := range items {
		key := DedupKey(it)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

// filterExisting drops items whose key already appears in the stored
// category. Stored items are never modified or removed.
func filterExisting(items, existing []any) []any {
	if len(existing) == 0 {
		return items
	}
	stored := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		if key := DedupKey(it); key != "" {
			stored[key] = struct{}{}
		}
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		if key := DedupKey(it); key != "" {
			if _, dup := stored[key]; dup {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}
