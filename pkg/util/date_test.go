package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10+02:00"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, "2024-10-10T08:10:10Z", got.Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ref := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime(strconv.FormatInt(ref.Unix(), 10))
	require.True(t, ok)
	assert.Equal(t, ref.Unix(), got.Unix())

	got, ok = ParseTime(strconv.FormatInt(ref.UnixMilli(), 10))
	require.True(t, ok)
	assert.True(t, got.Equal(ref))
}

func TestParseTimeLayoutsAndRejects(t *testing.T) {
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-10-10", " 2024-10-10 00:00:00 ", "2024-10-10T00:00:00Z"} {
		got, ok := ParseTime(in)
		require.True(t, ok, in)
		assert.True(t, got.Equal(want), in)
	}
	for _, in := range []string{"", "yesterday", "-5", "0"} {
		_, ok := ParseTime(in)
		assert.False(t, ok, in)
	}
}
