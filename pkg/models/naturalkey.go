package models

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/pulse/errors"
	"github.com/mitchellh/mapstructure"
)

// CalendarFields is the typed view of a schedule item's payload.
type CalendarFields struct {
	ID         string `mapstructure:"id"`
	ExternalID string `mapstructure:"external_id"`
	Title      string `mapstructure:"title"`
	Start      string `mapstructure:"start"`
	End        string `mapstructure:"end"`
	Location   string `mapstructure:"location"`
	Status     string `mapstructure:"status"`
}

// PriorityFields is the typed view of a priority item's payload.
type PriorityFields struct {
	ID         string `mapstructure:"id"`
	ExternalID string `mapstructure:"external_id"`
	Title      string `mapstructure:"title"`
	Rank       int    `mapstructure:"rank"`
	Source     string `mapstructure:"source"`
	Status     string `mapstructure:"status"`
}

// CommitmentFields is the typed view of a commitment item's payload.
type CommitmentFields struct {
	ID         string `mapstructure:"id"`
	ExternalID string `mapstructure:"external_id"`
	Title      string `mapstructure:"title"`
	Owner      string `mapstructure:"owner"`
	Due        string `mapstructure:"due"`
	Status     string `mapstructure:"status"`
}

// timeToStringHook renders time values (YAML timestamps decode to time.Time)
// as RFC3339 so string fields can hold them.
func timeToStringHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t.UTC().Format(time.RFC3339), nil
	}
	return data, nil
}

// DecodeFields decodes an item payload into one of the typed views.
// Unknown payload keys are ignored and scalar types are coerced.
func DecodeFields(fields map[string]any, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       timeToStringHook,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return fmt.Errorf("failed to decode item fields: %w", err)
	}
	return nil
}

// NaturalKey derives the identity of an item from its payload. Two records
// collected in different refresh cycles that describe the same logical item
// must produce the same key.
//
//   - any category: a non-empty id or external_id wins ("id:<value>")
//   - schedule: title|start, start normalised to UTC RFC3339 when parseable
//   - priority: title
//   - commitment: title|owner|due
func NaturalKey(c Category, fields map[string]any) (string, error) {
	var key string
	switch c {
	case CategorySchedule:
		var f CalendarFields
		if err := DecodeFields(fields, &f); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid schedule item")
		}
		if id := firstNonEmpty(f.ID, f.ExternalID); id != "" {
			return "id:" + normalizeKeyPart(id), nil
		}
		if strings.TrimSpace(f.Title) != "" {
			key = joinKey(f.Title, normalizeTime(f.Start))
		}
	case CategoryPriority:
		var f PriorityFields
		if err := DecodeFields(fields, &f); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid priority item")
		}
		if id := firstNonEmpty(f.ID, f.ExternalID); id != "" {
			return "id:" + normalizeKeyPart(id), nil
		}
		key = normalizeKeyPart(f.Title)
	case CategoryCommitment:
		var f CommitmentFields
		if err := DecodeFields(fields, &f); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid commitment item")
		}
		if id := firstNonEmpty(f.ID, f.ExternalID); id != "" {
			return "id:" + normalizeKeyPart(id), nil
		}
		if strings.TrimSpace(f.Title) != "" {
			key = joinKey(f.Title, f.Owner, normalizeTime(f.Due))
		}
	default:
		return "", errors.Newf(errors.ErrCodeInvalidInput, "unknown category '%s'", c)
	}
	if key == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "item has no id or title to derive a key from").
			WithDetail("category", string(c))
	}
	return key, nil
}

// AssignKeys fills in missing natural keys and disambiguates duplicates
// within one batch by suffixing the lowest free occurrence index ("key#2").
// A suffixed key never collides with another key of the batch.
func AssignKeys(c Category, items []Item) error {
	taken := make(map[string]bool, len(items))
	for i := range items {
		if strings.TrimSpace(items[i].Key) == "" {
			key, err := NaturalKey(c, items[i].Fields)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("item %d", i+1)).
					WithDetail("index", i+1)
			}
			items[i].Key = key
		}
		taken[items[i].Key] = true
	}

	seen := make(map[string]bool, len(items))
	for i := range items {
		base := items[i].Key
		if !seen[base] {
			seen[base] = true
			continue
		}
		for n := 2; ; n++ {
			candidate := base + "#" + strconv.Itoa(n)
			if !taken[candidate] {
				taken[candidate] = true
				items[i].Key = candidate
				break
			}
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func joinKey(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = normalizeKeyPart(p)
	}
	return strings.Join(out, "|")
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func normalizeTime(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}
