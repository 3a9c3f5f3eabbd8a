package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{10000, "10k"},
		{4700, "4.7k"},
		{1e-7, "100n"},
		{2.2e-6, "2.2u"},
		{4.7e6, "4.7meg"},
		{1e12, "1T"},
		{0.5, "500m"},
		{3.3, "3.3"},
		{-1500, "-1.5k"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, FormatValue(c.in), "FormatValue(%v)", c.in)
	}
}

func TestFormatValueFactor(t *testing.T) {
	assert.Equal(t, "1.500 ms", FormatValueFactor(0.0015, "s"))
	assert.Equal(t, "250.000 us", FormatValueFactor(0.00025, "s"))
	assert.Equal(t, "5.000 V", FormatValueFactor(5.0, "V"))
	assert.Equal(t, "100.000 nA", FormatValueFactor(1e-7, "A"))
}

func TestFormatFrequency(t *testing.T) {
	assert.Equal(t, "  1.000 kHz", FormatFrequency(1000))
	assert.Equal(t, "  2.500 MHz", FormatFrequency(2.5e6))
	assert.Equal(t, " 10.000 Hz ", FormatFrequency(10))
}

func TestIntegratorCoeffs(t *testing.T) {
	dt := 1e-6

	// First order BDF is backward Euler: 1/dt and -1/dt.
	coeffs := GetIntegratorCoeffs(GearMethod, 1, dt)
	assert.Len(t, coeffs, 2)
	assert.InDelta(t, 1.0/dt, coeffs[0], 1)
	assert.InDelta(t, -1.0/dt, coeffs[1], 1)

	coeffs = GetIntegratorCoeffs(TrapezoidalMethod, 2, dt)
	assert.Len(t, coeffs, 1)
	assert.InDelta(t, 2.0/dt, coeffs[0], 1)

	// Out-of-range order falls back to first order.
	coeffs = GetIntegratorCoeffs(GearMethod, 9, dt)
	assert.Len(t, coeffs, 2)
}
