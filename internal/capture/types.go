package capture

import (
	"sort"
	"strings"
)

// Collection names, one per captured-data section of the webhook payload.
const (
	CollectionTexts       = "captured_texts"
	CollectionScreenshots = "captured_screenshots"
	CollectionLists       = "captured_lists"
)

// Collections returns every known collection name.
func Collections() []string {
	return []string{CollectionTexts, CollectionScreenshots, CollectionLists}
}

// KnownCollection reports whether name is one of the collections this
// service persists to.
func KnownCollection(name string) bool {
	switch name {
	case CollectionTexts, CollectionScreenshots, CollectionLists:
		return true
	}
	return false
}

// WebhookPayload is the decoded body of a capture callback. The upstream
// service posts one payload per finished task; all interesting data hangs
// off the nested task object.
type WebhookPayload struct {
	Task *Task `json:"task"`
}

// Task carries the robot run that produced the callback. The captured
// sections are arbitrary JSON shaped by whatever robot ran, so they decode
// into generic maps and are cleaned up downstream.
type Task struct {
	ID                  string         `json:"id"`
	RobotID             string         `json:"robotId,omitempty"`
	Status              string         `json:"status,omitempty"`
	InputParameters     map[string]any `json:"inputParameters"`
	CapturedTexts       map[string]any `json:"capturedTexts,omitempty"`
	CapturedScreenshots map[string]any `json:"capturedScreenshots,omitempty"`
	CapturedLists       map[string]any `json:"capturedLists,omitempty"`
}

// Sections maps each non-empty captured section to its collection name.
// Sections the payload omits are absent from the result.
func (t *Task) Sections() map[string]map[string]any {
	if t == nil {
		return nil
	}
	out := make(map[string]map[string]any, 3)
	if len(t.CapturedTexts) > 0 {
		out[CollectionTexts] = t.CapturedTexts
	}
	if len(t.CapturedScreenshots) > 0 {
		out[CollectionScreenshots] = t.CapturedScreenshots
	}
	if len(t.CapturedLists) > 0 {
		out[CollectionLists] = t.CapturedLists
	}
	return out
}

// SourceURL picks the page URL out of the task's input parameters. It
// prefers the conventional originUrl and url parameter names; failing
// those it falls back to the lexicographically first parameter so the
// choice stays deterministic across runs. Returns "" when the task has
// no usable parameter.
func (t *Task) SourceURL() string {
	if t == nil || len(t.InputParameters) == 0 {
		return ""
	}
	for _, name := range []string{"originUrl", "url"} {
		if s := stringParam(t.InputParameters, name); s != "" {
			return s
		}
	}
	keys := make([]string, 0, len(t.InputParameters))
	for k := range t.InputParameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := stringParam(t.InputParameters, k); s != "" {
			return s
		}
	}
	return ""
}

func stringParam(params map[string]any, name string) string {
	v, ok := params[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
