package capture

// MergeData folds normalized incoming data into the existing document
// data. Array-valued fields are append-only: the stored items stay in
// place as a prefix and deduplicated new items land behind them, in their
// incoming order. Everything else is overwritten by the incoming value.
// Neither input is modified.
func MergeData(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		newItems, isArray := v.([]any)
		if !isArray {
			out[k] = v
			continue
		}
		newItems = dedupBatch(newItems)
		oldItems, hadArray := out[k].([]any)
		if !hadArray {
			out[k] = newItems
			continue
		}
		merged := make([]any, 0, len(oldItems)+len(newItems))
		merged = append(merged, oldItems...)
		merged = append(merged, filterExisting(newItems, oldItems)...)
		out[k] = merged
	}
	return out
}
