package schematic

// Signal is a net. Analog nets are scalar; Width is kept for symmetry
// with the digital side of the framework and is always 1 here.
type Signal struct {
	ID    int
	Name  string
	Width int

	Power   bool
	Ground  bool
	Inport  bool
	Outport bool
	Digital bool

	// Drive levels for digital nets, in volts.
	High float64
	Low  float64

	// Receive thresholds for reading a node voltage back as a bit.
	HighThreshold float64
	LowThreshold  float64

	module *Module
}

const (
	DefaultHigh          = 3.3
	DefaultLow           = 0.0
	DefaultHighThreshold = 2.0
	DefaultLowThreshold  = 0.8
)

// SignalOption adjusts digital levels or thresholds at declaration.
type SignalOption func(*Signal)

// WithLevels sets the drive voltages used when the net is driven as a
// digital input.
func WithLevels(high, low float64) SignalOption {
	return func(s *Signal) {
		s.High = high
		s.Low = low
	}
}

// WithThresholds sets the voltages above/below which a node reads back
// as true/false.
func WithThresholds(high, low float64) SignalOption {
	return func(s *Signal) {
		s.HighThreshold = high
		s.LowThreshold = low
	}
}

// Module returns the module the signal was declared in.
func (s *Signal) Module() *Module {
	return s.module
}

// NodeName is the MNA node the net maps to: ground nets alias "0",
// everything else keeps its name.
func (s *Signal) NodeName() string {
	if s.Ground {
		return "0"
	}
	return s.Name
}
