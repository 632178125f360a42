// Package config loads vegasload settings from flags, VEGASLOAD_*
// environment variables and JSON or YAML config files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting returns the first non-nil value stored under any of the
// candidate keys, trying each key as given and lower-cased.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		for _, k := range []string{key, strings.ToLower(key)} {
			if val, ok := settings[k]; ok && val != nil {
				return val, true
			}
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	return cast.ToStringE(value)
}

// blank reports whether value is an empty or whitespace-only string, which
// config files use to mean "unset".
func blank(value interface{}) bool {
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func asInt(value interface{}) (int, error) {
	if blank(value) {
		return 0, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToIntE(value)
}

func asInt64(value interface{}) (int64, error) {
	if blank(value) {
		return 0, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToInt64E(value)
}

func asFloat64(value interface{}) (float64, error) {
	if blank(value) {
		return 0, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToFloat64E(value)
}

func asBool(value interface{}) (bool, error) {
	if blank(value) {
		return false, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToBoolE(value)
}

// asDuration accepts Go duration strings; bare numbers are seconds.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		return time.ParseDuration(v)
	}
	secs, err := cast.ToInt64E(value)
	if err != nil {
		return 0, fmt.Errorf("unsupported duration %v (%T)", value, value)
	}
	return time.Duration(secs) * time.Second, nil
}

// asStringSlice keeps a single string whole; thresholds contain spaces.
func asStringSlice(value interface{}) ([]string, error) {
	if s, ok := value.(string); ok {
		return []string{s}, nil
	}
	return cast.ToStringSliceE(value)
}

func toInterfaceSlice(value interface{}) ([]interface{}, error) {
	if value == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(value)
	if err != nil {
		return nil, fmt.Errorf("expected list, got %T", value)
	}
	return items, nil
}

// toStringKeyMap converts a decoded YAML or JSON object into a map with
// trimmed, lower-cased keys.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	if _, ok := value.(string); ok {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	result := make(map[string]interface{}, len(m))
	for key, val := range m {
		result[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return result, nil
}
