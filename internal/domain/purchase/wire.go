package purchase

import (
	"time"

	"billing-service/internal/pkg/dateutil"
	xerrors "billing-service/internal/pkg/errors"
)

// Helpers over the map[string]interface{} wire form shared by all
// purchase variants. A missing or null optional field decodes to "no
// value", never to a zero value.

func wireString(m map[string]interface{}, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", xerrors.MalformedPayload("missing required field %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", xerrors.MalformedPayload("field %q is not a string", key)
	}
	if s == "" {
		return "", xerrors.MalformedPayload("field %q must not be empty", key)
	}
	return s, nil
}

func wireBool(m map[string]interface{}, key string) (bool, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return false, xerrors.MalformedPayload("missing required field %q", key)
	}
	b, ok := raw.(bool)
	if !ok {
		return false, xerrors.MalformedPayload("field %q is not a boolean", key)
	}
	return b, nil
}

func wireInt(m map[string]interface{}, key string) (int, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, xerrors.MalformedPayload("missing required field %q", key)
	}
	return coerceInt(raw, key)
}

func wireOptionalInt(m map[string]interface{}, key string) (*int, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	n, err := coerceInt(raw, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func coerceInt(raw interface{}, key string) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, xerrors.MalformedPayload("field %q is not an integer", key)
	}
}

// wireTime decodes an optional timestamp field through the shared date
// parser. Absent and null both mean "no value"; a malformed value fails
// the whole decode.
func wireTime(m map[string]interface{}, key string) (*time.Time, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	t, err := dateutil.ParseDate(raw)
	if err != nil {
		return nil, xerrors.MalformedPayload("field %q: unparseable timestamp", key).WithCause(err)
	}
	return t, nil
}

func wireRequiredTime(m map[string]interface{}, key string) (time.Time, error) {
	t, err := wireTime(m, key)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, xerrors.MalformedPayload("missing required field %q", key)
	}
	return *t, nil
}

// wireStringSlice decodes an ordered string sequence. An absent key
// yields an empty slice, never a missing value.
func wireStringSlice(m map[string]interface{}, key string) ([]string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return []string{}, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		if typed, ok := raw.([]string); ok {
			out := make([]string, len(typed))
			copy(out, typed)
			return out, nil
		}
		return nil, xerrors.MalformedPayload("field %q is not a string array", key)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, xerrors.MalformedPayload("field %q contains a non-string element", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatWireTime renders an optional timestamp as an RFC3339 string or
// null, the inverse of wireTime.
func formatWireTime(t *time.Time) interface{} {
	return dateutil.FormatDate(t)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
