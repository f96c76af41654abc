package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Coercion converts a raw field value into a typed value.
type Coercion[V any] func(raw string) (V, error)

// Text keeps the value as is.
func Text(raw string) (string, error) { return raw, nil }

// TrimmedText strips surrounding white space.
func TrimmedText(raw string) (string, error) { return strings.TrimSpace(raw), nil }

// Int64 parses a base 10 integer, ignoring surrounding white space.
func Int64(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// Date parses the value with layout (e.g. time.DateOnly).
func Date(layout string) Coercion[time.Time] {
	return func(raw string) (time.Time, error) {
		return time.Parse(layout, strings.TrimSpace(raw))
	}
}

// OneOf accepts one of values, compared case-insensitively, and returns it
// as spelled in values.
func OneOf(values ...string) Coercion[string] {
	return func(raw string) (string, error) {
		v := strings.TrimSpace(raw)
		for _, allowed := range values {
			if strings.EqualFold(v, allowed) {
				return allowed, nil
			}
		}
		return "", fmt.Errorf("must be one of %v", values)
	}
}

// Optional maps an empty (or blank) value to nil and anything else through c.
func Optional[V any](c Coercion[V]) Coercion[*V] {
	return func(raw string) (*V, error) {
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		v, err := c(raw)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
}

// Default maps an empty (or blank) value to def and anything else through c.
func Default[V any](c Coercion[V], def V) Coercion[V] {
	return func(raw string) (V, error) {
		if strings.TrimSpace(raw) == "" {
			return def, nil
		}
		return c(raw)
	}
}
