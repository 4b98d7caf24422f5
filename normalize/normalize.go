// Package normalize holds the defensive lookups and mapper tables provider
// adapters use to turn raw listing objects into core.IntegrationItem values.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// Fields is a raw provider object. Every lookup tolerates missing keys, nil
// values, and unexpected types.
type Fields map[string]any

// Get walks path through nested objects and returns nil when any step is
// missing or not an object.
func (f Fields) Get(path ...string) any {
	if len(path) == 0 || f == nil {
		return nil
	}
	var current any = map[string]any(f)
	for _, key := range path {
		object, ok := asObject(current)
		if !ok {
			return nil
		}
		current, ok = object[key]
		if !ok {
			return nil
		}
	}
	return current
}

// String renders the value at path, or "" when it is absent.
func (f Fields) String(path ...string) string {
	return stringify(f.Get(path...))
}

// StringOr renders the value at path, or fallback when it is absent or blank.
func (f Fields) StringOr(fallback string, path ...string) string {
	if value := f.String(path...); value != "" {
		return value
	}
	return fallback
}

func (f Fields) Object(path ...string) Fields {
	object, _ := asObject(f.Get(path...))
	return Fields(object)
}

func (f Fields) List(path ...string) []any {
	switch typed := f.Get(path...).(type) {
	case []any:
		return typed
	case []map[string]any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, item)
		}
		return out
	default:
		return nil
	}
}

func (f Fields) Count(path ...string) int {
	return len(f.List(path...))
}

func asObject(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case Fields:
		return map[string]any(typed), true
	default:
		return nil, false
	}
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case map[string]any, []any, Fields:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

// Mapper converts one raw item of a known kind.
type Mapper func(raw core.RawItem) core.IntegrationItem

// Table dispatches raw items to a mapper by kind.
type Table struct {
	provider string
	icon     string
	mappers  map[string]Mapper
}

func NewTable(provider string, icon string, mappers map[string]Mapper) Table {
	copied := make(map[string]Mapper, len(mappers))
	for kind, mapper := range mappers {
		if mapper == nil {
			continue
		}
		copied[strings.ToLower(strings.TrimSpace(kind))] = mapper
	}
	return Table{provider: strings.TrimSpace(provider), icon: strings.TrimSpace(icon), mappers: copied}
}

// Normalize maps raw. Kinds without a mapper still yield a complete item.
func (t Table) Normalize(raw core.RawItem) core.IntegrationItem {
	mapper, ok := t.mappers[strings.ToLower(strings.TrimSpace(raw.Kind))]
	if !ok {
		return Complete(t.fallback(raw))
	}
	return Complete(mapper(raw))
}

func (t Table) Kinds() []string {
	kinds := make([]string, 0, len(t.mappers))
	for kind := range t.mappers {
		kinds = append(kinds, kind)
	}
	return kinds
}

func (t Table) fallback(raw core.RawItem) core.IntegrationItem {
	fields := Fields(raw.Fields)
	return core.IntegrationItem{
		ID:          raw.ID,
		Name:        fields.StringOr("Untitled", "name"),
		Icon:        t.icon,
		Description: fmt.Sprintf("%s %s", t.provider, strings.TrimSpace(raw.Kind)),
		Type:        strings.TrimSpace(raw.Kind),
		CreatedBy:   t.provider,
		Metadata:    map[string]string{},
	}
}

// Complete replaces a nil metadata map so the item always serializes every
// field.
func Complete(item core.IntegrationItem) core.IntegrationItem {
	if item.Metadata == nil {
		item.Metadata = map[string]string{}
	}
	return item
}

// Metadata builds a flat string map from alternating key/value pairs. Missing
// values are kept as empty strings.
func Metadata(pairs ...string) map[string]string {
	out := make(map[string]string, len(pairs)/2)
	for index := 0; index+1 < len(pairs); index += 2 {
		key := strings.TrimSpace(pairs[index])
		if key == "" {
			continue
		}
		out[key] = pairs[index+1]
	}
	return out
}

// JoinNonEmpty joins the non-blank parts with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, sep)
}
