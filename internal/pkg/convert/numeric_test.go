package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64Default(t *testing.T) {
	cases := []struct {
		name string
		in   any
		def  float64
		want float64
	}{
		{"nil uses default", nil, 7, 7},
		{"empty string uses default", "", 7, 7},
		{"blank string uses default", "   ", 7, 7},
		{"string number", "49000.5", 7, 49000.5},
		{"string with spaces", " 12.5 ", 0, 12.5},
		{"garbage uses default", "abc", 3, 3},
		{"float64 passthrough", 1.25, 0, 1.25},
		{"int", 42, 0, 42},
		{"json number", json.Number("0.001"), 0, 0.001},
		{"unsupported type", struct{}{}, 9, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToFloat64Default(tc.in, tc.def))
		})
	}
}

func TestToInt64(t *testing.T) {
	assert.Equal(t, int64(1700000000000), ToInt64("1700000000000"))
	assert.Equal(t, int64(0), ToInt64(""))
	assert.Equal(t, int64(0), ToInt64(nil))
	assert.Equal(t, int64(123), ToInt64(123.9))
	assert.Equal(t, int64(15), ToInt64("15.0"))
}

func TestHasValue(t *testing.T) {
	assert.False(t, HasValue(nil))
	assert.False(t, HasValue(""))
	assert.False(t, HasValue("  "))
	assert.True(t, HasValue("0"))
	assert.True(t, HasValue(0.0))
}
