package form

import (
	"fmt"
	"strings"
)

// Kind declares the scalar type a Field holds.
type Kind string

const (
	KindAny    Kind = "any"
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindEnum   Kind = "enum"
)

// Coerce checks v against kind and normalises it. Numbers are stored as
// float64. nil is accepted for every kind.
func Coerce(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindString, KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s wants string, got %T", ErrValueKind, kind, v)
		}
		return s, nil
	case KindNumber:
		f, ok := ToNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: number wants numeric value, got %T", ErrValueKind, v)
		}
		return f, nil
	case KindAny, "":
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%w: fields hold scalars, got %T", ErrValueKind, v)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrValueKind, kind)
	}
}

// ToNumber converts Go numeric types to float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	default:
		return 0, false
	}
}

func inferKind(v any) Kind {
	switch v.(type) {
	case string:
		return KindString
	case nil:
		return KindAny
	}
	if _, ok := ToNumber(v); ok {
		return KindNumber
	}
	return KindAny
}

func splitPath(path string) []string {
	trimmed := strings.Trim(strings.TrimSpace(path), ".")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ".")
	out := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sanitizeValue(value any, fn func(string) string) any {
	if fn == nil {
		return value
	}
	switch typed := value.(type) {
	case string:
		return fn(typed)
	case map[string]any:
		for k, v := range typed {
			typed[k] = sanitizeValue(v, fn)
		}
		return typed
	case []any:
		for i, v := range typed {
			typed[i] = sanitizeValue(v, fn)
		}
		return typed
	default:
		return value
	}
}
