package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/wI2L/jsondiff"
)

// FieldChange is the before and after value of one edited field
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// Changes maps a top-level field name to its change
type Changes map[string]FieldChange

// Fields returns the changed field names in sorted order
func (c Changes) Fields() []string {
	out := make([]string, 0, len(c))
	for f := range c {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Diff compares the JSON forms of two values and returns the changed top-level fields
func Diff(before, after interface{}) (Changes, error) {
	beforeMap, err := toMap(before)
	if err != nil {
		return nil, err
	}
	afterMap, err := toMap(after)
	if err != nil {
		return nil, err
	}

	patch, err := jsondiff.Compare(beforeMap, afterMap)
	if err != nil {
		return nil, fmt.Errorf("compare invoice data: %w", err)
	}

	changes := make(Changes)
	for _, op := range patch {
		field := topLevelField(string(op.Path))
		if field == "" {
			continue
		}
		changes[field] = FieldChange{From: beforeMap[field], To: afterMap[field]}
	}
	return changes, nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice data: %w", err)
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal invoice data: %w", err)
	}
	return out, nil
}

// topLevelField turns a JSON pointer like "/details/0" into "details"
func topLevelField(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return strings.ReplaceAll(strings.ReplaceAll(path, "~1", "/"), "~0", "~")
}
