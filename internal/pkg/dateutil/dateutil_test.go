package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateNil(t *testing.T) {
	got, err := ParseDate(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseDateFormats(t *testing.T) {
	want := time.Date(2021, 6, 15, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  interface{}
	}{
		{"rfc3339", "2021-06-15T10:30:00Z"},
		{"rfc3339 offset", "2021-06-15T12:30:00+02:00"},
		{"no zone", "2021-06-15T10:30:00"},
		{"epoch seconds", float64(1623753000)},
		{"epoch millis", float64(1623753000000)},
		{"epoch seconds int", 1623753000},
		{"numeric string seconds", "1623753000"},
		{"numeric string millis", "1623753000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDate(tc.raw)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, want.Equal(*got), "got %v, want %v", got, want)
		})
	}
}

func TestParseDateDateOnly(t *testing.T) {
	got, err := ParseDate("2021-06-15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC), *got)
}

func TestParseDateMalformed(t *testing.T) {
	for _, raw := range []interface{}{"not-a-date", "", true, []string{"x"}} {
		_, err := ParseDate(raw)
		assert.Error(t, err, "raw %v", raw)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Nil(t, FormatDate(nil))

	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2020-01-01T00:00:00Z", FormatDate(&ts))
}

func TestFormatParseRoundTrip(t *testing.T) {
	ts := time.Date(2023, 3, 9, 18, 45, 12, 0, time.UTC)
	raw := FormatDate(&ts)

	got, err := ParseDate(raw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, ts.Equal(*got))
}
