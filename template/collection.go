package template

import (
	"fmt"
	"reflect"
	"strings"
)

// toSlice converts a slice or array of any element type to []any.
func toSlice(val any) ([]any, error) {
	if val == nil {
		return nil, nil
	}
	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			result[i] = v.Index(i).Interface()
		}
		return result, nil
	default:
		return nil, fmt.Errorf("cannot iterate over %T", val)
	}
}

// filterItems keeps the items for which the where condition holds, with the
// loop variable bound to each item in turn.
func filterItems(items []any, ctx *renderContext, varName, where string) ([]any, error) {
	lv := pushLoopVar(ctx, varName, "")
	defer lv.restore()

	var kept []any
	for _, item := range items {
		lv.set(item, 0)
		ok, err := ctx.truthy(where)
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", where, err)
		}
		if ok {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

// sortKey is one field of an order_by specification.
type sortKey struct {
	field string
	desc  bool
}

// parseOrderBy parses "e.Name ASC, e.Amount DESC" into sort keys, stripping
// the loop variable prefix from field names. The bare variable name sorts
// by the items themselves, for scalar collections.
func parseOrderBy(spec, varName string) []sortKey {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	prefix := varName + "."
	var keys []sortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.Fields(part)
		field := tokens[0]
		if field == varName {
			field = ""
		} else {
			field = strings.TrimPrefix(field, prefix)
		}
		desc := len(tokens) > 1 && strings.EqualFold(tokens[1], "DESC")
		keys = append(keys, sortKey{field: field, desc: desc})
	}
	return keys
}

// sortItems sorts in place by the given keys. Stable insertion sort; repeat
// collections are template-sized.
func sortItems(items []any, keys []sortKey) {
	if len(keys) == 0 || len(items) <= 1 {
		return
	}
	for i := 1; i < len(items); i++ {
		item := items[i]
		j := i - 1
		for j >= 0 && compareByKeys(items[j], item, keys) > 0 {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = item
	}
}

func compareByKeys(a, b any, keys []sortKey) int {
	for _, k := range keys {
		cmp := compareValues(fieldOf(a, k.field), fieldOf(b, k.field))
		if k.desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

// fieldOf reads a named field from a map or (possibly pointered) struct.
// The empty field name means the item itself.
func fieldOf(item any, field string) any {
	if field == "" {
		return item
	}
	if item == nil {
		return nil
	}
	if m, ok := item.(map[string]any); ok {
		return m[field]
	}
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		f := v.FieldByName(field)
		if f.IsValid() {
			return f.Interface()
		}
	}
	return nil
}

// compareValues orders two values, numerically when both convert to
// float64, otherwise by their string forms. nil sorts first.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	fa, aOK := asFloat(a)
	fb, bOK := asFloat(b)
	if aOK && bOK {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
