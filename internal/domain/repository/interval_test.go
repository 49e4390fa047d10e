package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalMinutes(t *testing.T) {
	cases := map[Interval]int{
		Interval5m:  5,
		Interval15m: 15,
		Interval1h:  60,
		Interval4h:  240,
		Interval1d:  1440,
		"3w":        60,
	}
	for iv, want := range cases {
		assert.Equal(t, want, iv.Minutes(), string(iv))
	}
}

func TestIsValidInterval(t *testing.T) {
	assert.True(t, IsValidInterval(DefaultInterval()))
	assert.True(t, IsValidInterval("4h"))
	assert.False(t, IsValidInterval("2h"))
	assert.False(t, IsValidInterval(""))
}
