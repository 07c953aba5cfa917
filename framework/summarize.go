package framework

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

const (
	// maxKeys bounds how many entries a summarized object keeps.
	maxKeys = 20
	// smallObject is the key count up to which a nested object is kept
	// one level deep.
	smallObject = 3
)

// Shallow summarizes every entry of m. Keys starting with "_" or "$" and
// the framework-internal children/key/ref are skipped; at most 20 entries
// are kept, in key order.
func Shallow(m map[string]any) map[string]any {
	out := make(map[string]any)
	keys := slices.Sorted(maps.Keys(m))
	for _, k := range keys {
		if len(out) >= maxKeys {
			break
		}
		if strings.HasPrefix(k, "_") || strings.HasPrefix(k, "$") {
			continue
		}
		if k == "children" || k == "key" || k == "ref" {
			continue
		}
		out[k] = Summarize(m[k])
	}
	return out
}

// Summarize reduces v to a JSON-safe value: functions, nodes and symbols
// become placeholders, arrays become their length, small objects are kept
// one level deep and larger ones collapse to "[Object]".
func Summarize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Symbol:
		return "[Symbol]"
	case *html.Node:
		if t == nil {
			return nil
		}
		if t.Type == html.ElementNode {
			return "[HTMLElement]"
		}
		return "[Node]"
	case string, bool, float64, float32, int, int64, int32, uint, uint64:
		return t
	case map[string]any:
		if len(t) > smallObject {
			return "[Object]"
		}
		o := make(map[string]any, len(t))
		for k, val := range t {
			if isObject(val) {
				o[k] = "[Object]"
			} else {
				o[k] = Summarize(val)
			}
		}
		return o
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return "[Function]"
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("[Array(%d)]", rv.Len())
	case reflect.Map, reflect.Struct, reflect.Pointer, reflect.Interface:
		return "[Object]"
	}
	return v
}

func isObject(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Struct, reflect.Pointer, reflect.Slice, reflect.Array:
		return true
	}
	return false
}
