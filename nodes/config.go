package nodes

import (
	"fmt"
	"strconv"
)

// Config values arrive through the template resolver, so a numeric
// knob may surface as an int, a float, or rendered text. These
// coercions keep each node's Run free of repetitive type switches.

func asString(v any, def string) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return def
	default:
		return fmt.Sprint(val)
	}
}

func asInt(v any, def int) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func asBool(v any, def bool) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
