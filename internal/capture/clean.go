package capture

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// defaultEventSites are the site markers that switch on event-date
// enrichment. Config may extend the set but never shrinks it.
var defaultEventSites = []string{"espn", "olympics"}

// Normalizer turns one captured section of a webhook payload into its
// store-ready form. It is safe for concurrent use.
type Normalizer struct {
	ids    IDGenerator
	clock  Clock
	sites  []string
	logger *zap.Logger
}

// NewNormalizer builds a Normalizer. extraEventSites extends the default
// event-site markers; a nil logger falls back to a no-op one.
func NewNormalizer(ids IDGenerator, clk Clock, extraEventSites []string, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	sites := append([]string(nil), defaultEventSites...)
	for _, s := range extraEventSites {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			sites = append(sites, s)
		}
	}
	return &Normalizer{ids: ids, clock: clk, sites: sites, logger: logger}
}

// NormalizeSection cleans a captured section and wraps its array-valued
// fields into item categories. docKey and originURL are stamped onto every
// wrapped item. The input map is never modified.
func (n *Normalizer) NormalizeSection(section map[string]any, docKey, originURL string) map[string]any {
	cleaned, ok := cleanValue(section).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(cleaned))
	for name, v := range cleaned {
		if items, isArray := v.([]any); isArray {
			out[name] = n.wrapCategory(name, items, docKey, originURL)
			continue
		}
		out[name] = v
	}
	return out
}

func (n *Normalizer) wrapCategory(category string, elements []any, docKey, originURL string) []any {
	items := make([]any, 0, len(elements))
	for i, el := range elements {
		items = append(items, n.wrapItem(category, i, el, docKey, originURL))
	}
	return items
}

// wrapItem builds a captured item: defaults first, then the element's own
// fields, which win on collision (an element carrying its own Title keeps
// it).
func (n *Normalizer) wrapItem(category string, idx int, element any, docKey, originURL string) map[string]any {
	item := map[string]any{
		"uid":       n.newUID(category, idx),
		"Title":     category,
		"originUrl": originURL,
		"createdAt": n.clock.Now().UTC().Format(time.RFC3339),
	}
	switch el := element.(type) {
	case map[string]any:
		for k, v := range el {
			item[k] = v
		}
	case nil:
	default:
		// Scalar elements keep their value under a stable field name.
		item["Value"] = el
	}
	normalizeImage(item)
	if n.eventSite(docKey, category) {
		n.enrichEventDates(item, docKey, category)
	}
	return item
}

func (n *Normalizer) newUID(category string, idx int) string {
	id, err := n.ids.NewID()
	if err != nil {
		n.logger.Warn("id generation failed, using fallback uid", zap.Error(err))
		return fmt.Sprintf("%s-%d-%d", category, n.clock.Now().UnixMilli(), idx)
	}
	return id
}

// normalizeImage guarantees an Image field: absent becomes "", a present
// URL loses its query string.
func normalizeImage(item map[string]any) {
	v, ok := item["Image"]
	if !ok {
		item["Image"] = ""
		return
	}
	if s, isStr := v.(string); isStr {
		if i := strings.IndexByte(s, '?'); i >= 0 {
			item["Image"] = s[:i]
		}
	}
}

func (n *Normalizer) eventSite(docKey, category string) bool {
	key := strings.ToLower(docKey)
	cat := strings.ToLower(category)
	for _, marker := range n.sites {
		if strings.Contains(key, marker) || strings.Contains(cat, marker) {
			return true
		}
	}
	return false
}

// enrichEventDates derives StartDate/EndDate from a free-form EventDate
// string. Parse failures leave the fields unset and never propagate.
func (n *Normalizer) enrichEventDates(item map[string]any, docKey, category string) {
	raw, ok := item["EventDate"].(string)
	if !ok || raw == "" {
		return
	}
	start, end, err := ParseEventDateRange(raw, n.clock.Now().Year())
	if err != nil {
		n.logger.Debug("event date not parseable",
			zap.String("doc_key", docKey),
			zap.String("category", category),
			zap.String("event_date", raw),
			zap.Error(err),
		)
		return
	}
	item["StartDate"] = start.Format(EventDateLayout)
	item["EndDate"] = end.Format(EventDateLayout)
}

// dropKey reports whether a field name is scraper bookkeeping that never
// reaches the store.
func dropKey(key string) bool {
	return key == "_STATUS" || strings.EqualFold(key, "position")
}

// cleanValue rebuilds a decoded JSON value without dropped keys. The type
// switch is exhaustive over the shapes encoding/json produces for any;
// scalars pass through untouched.
func cleanValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			if dropKey(k) {
				continue
			}
			out[k] = cleanValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cleanValue(elem)
		}
		return out
	default:
		return val
	}
}
