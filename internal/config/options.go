package config

import "strconv"

// Options is a loosely-typed option bag for backend- and module-specific
// knobs that don't warrant first-class config fields (e.g. sqlite pragmas,
// a postgres schema name). Values come straight from JSON, so numbers are
// float64 and nested maps are map[string]any.
type Options map[string]any

// Bool returns the option as a bool, or def when absent or not coercible.
// String values "true"/"false" are accepted for hand-edited configs.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// Int returns the option as an int, or def when absent or not coercible.
func (o Options) Int(key string, def int) int {
	v, ok := o[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

// String returns the option as a string, or def when absent or not a string.
func (o Options) String(key string, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Rune returns the first rune of a string option, or def when absent or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the option as a map[string]string. Non-string values in
// the JSON object are skipped. Returns nil when the option is absent.
func (o Options) StringMap(key string) map[string]string {
	v, ok := o[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
