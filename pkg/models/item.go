package models

import (
	"fmt"
	"time"
)

// Item is one coded entry in a snapshot section. Fields is the opaque
// payload supplied by the collector that produced the item.
type Item struct {
	Code     Code           `json:"code"`
	Category Category       `json:"category"`
	Key      string         `json:"key"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Clone returns a deep copy of the item so the copy can be mutated without
// affecting any published snapshot.
func (i Item) Clone() Item {
	out := i
	out.Fields = cloneMap(i.Fields)
	return out
}

// Field returns a payload field rendered as a string, or "" when absent.
func (i Item) Field(name string) string {
	v, ok := i.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// Set assigns a payload field, allocating the map when needed.
func (i *Item) Set(name string, value any) {
	if i.Fields == nil {
		i.Fields = make(map[string]any)
	}
	i.Fields[name] = value
}

// Title returns the item's title field.
func (i Item) Title() string {
	return i.Field("title")
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
