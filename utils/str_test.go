package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFixedInt(t *testing.T) {
	for _, tc := range []struct {
		s     string
		width int
		v     int
		ok    bool
	}{
		{"00032", 5, 32, true},
		{"123456", 5, 123456, true},
		{"0032", 5, 0, false},
		{"-0032", 5, 0, false},
		{"+0032", 4, 0, false},
		{"00a32", 5, 0, false},
		{"", 0, 0, false},
	} {
		v, ok := ParseFixedInt(tc.s, tc.width)
		assert.Equal(t, tc.ok, ok, tc.s)
		if tc.ok {
			assert.Equal(t, tc.v, v, tc.s)
		}
	}
}

func TestTrimExt(t *testing.T) {
	name, ok := TrimExt("01_00000_00032_00000_00032.patch", ".patch")
	assert.True(t, ok)
	assert.Equal(t, "01_00000_00032_00000_00032", name)
	_, ok = TrimExt("grid.json", ".patch")
	assert.False(t, ok)
}
