package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"10k", 1e4},
		{"4.7K", 4.7e3},
		{"1meg", 1e6},
		{"1MEG", 1e6},
		{"10m", 1e-2},
		{"10M", 1e-2},
		{"2.2u", 2.2e-6},
		{"100n", 1e-7},
		{"33p", 33e-12},
		{"1f", 1e-15},
		{"1T", 1e12},
		{"2g", 2e9},
		{"4.7", 4.7},
		{".5", 0.5},
		{"-3.3", -3.3},
		{"+2", 2},
		{"1e-3", 1e-3},
		{"2.5E3", 2500},
		{"10kohm", 1e4},
		{"100nF", 1e-7},
		{"5V", 5},
		{"1kHz", 1e3},
	}

	for _, tc := range cases {
		got, err := ParseValue(tc.in)
		assert.NoError(t, err, tc.in)
		assert.InDelta(t, tc.want, got, 1e-12*max(1, tc.want), tc.in)
	}
}

func TestParseValueErrors(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "--5", "k10", "1 0"} {
		_, err := ParseValue(in)
		assert.Error(t, err, in)
	}
}
