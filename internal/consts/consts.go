package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // 0degC in Kelvin (K)
	REFTEMP   = 300.15        // Reference temperature, 27degC (K)
)

// ThermalVoltage - kT/q at the given temperature. Falls back to REFTEMP
// when the temperature is not physical.
func ThermalVoltage(temp float64) float64 {
	if temp <= 0 {
		temp = REFTEMP
	}
	return BOLTZMANN * temp / CHARGE
}
