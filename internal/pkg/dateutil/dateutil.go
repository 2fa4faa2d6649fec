package dateutil

import (
	"strconv"
	"time"

	xerrors "billing-service/internal/pkg/errors"
)

// Epoch values at or above this are taken as milliseconds. The cutoff
// corresponds to 5138-11-16 in seconds, so no realistic second-based
// timestamp crosses it.
const millisCutoff = int64(100_000_000_000)

var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate converts a raw wire value into a UTC timestamp. It accepts
// ISO-8601 strings and epoch-like inputs (seconds or milliseconds, as a
// number or numeric string). A nil input yields a nil timestamp; any
// malformed non-nil input fails.
func ParseDate(raw interface{}) (*time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		t := v.UTC()
		return &t, nil
	case string:
		return parseString(v)
	case float64:
		return fromEpoch(int64(v)), nil
	case int64:
		return fromEpoch(v), nil
	case int:
		return fromEpoch(int64(v)), nil
	default:
		return nil, xerrors.MalformedPayload("unsupported date value %v (%T)", raw, raw)
	}
}

func parseString(s string) (*time.Time, error) {
	if s == "" {
		return nil, xerrors.MalformedPayload("empty date string")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n), nil
	}
	for _, layout := range stringLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, xerrors.MalformedPayload("unparseable date string %q", s)
}

func fromEpoch(n int64) *time.Time {
	var t time.Time
	if n >= millisCutoff || n <= -millisCutoff {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}

// FormatDate renders an optional timestamp as an RFC3339 UTC string, or
// nil when the timestamp is unset. This is the inverse of ParseDate for
// wire payloads.
func FormatDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
