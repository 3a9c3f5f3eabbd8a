package sim

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/analysis"
	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

// Profile selects what a run executes and what it keeps. Engineering
// quantities are SPICE value strings ("10u", "1meg"), so a profile
// reads like the analysis cards it stands in for.
type Profile struct {
	// Analysis is the kind to run: op, tran, ac or dc.
	Analysis string `yaml:"analysis"`

	// Temp is the simulation temperature in Celsius; zero keeps the
	// 27 C default.
	Temp float64 `yaml:"temp,omitempty"`

	// Probes trims the captured series to these names (V(out),
	// I(V1), …). Empty keeps everything.
	Probes []string `yaml:"probes,omitempty"`

	// Raw is a waveform file path written after the run.
	Raw string `yaml:"raw,omitempty"`

	Tran        TranProfile `yaml:"tran,omitempty"`
	AC          ACProfile   `yaml:"ac,omitempty"`
	DC          DCProfile   `yaml:"dc,omitempty"`
	Convergence Convergence `yaml:"convergence,omitempty"`
}

// TranProfile mirrors the .tran card.
type TranProfile struct {
	Step  string `yaml:"step"`
	Stop  string `yaml:"stop"`
	Start string `yaml:"start,omitempty"`
	Max   string `yaml:"max,omitempty"`
	UIC   bool   `yaml:"uic,omitempty"`
}

// ACProfile mirrors the .ac card. An AC run drives every analog input
// port with a unit magnitude source, so the captured _MAG series read
// as transfer magnitudes.
type ACProfile struct {
	Sweep  string `yaml:"sweep"` // DEC, OCT or LIN
	Points int    `yaml:"points"`
	Start  string `yaml:"start"`
	Stop   string `yaml:"stop"`
}

// DCProfile mirrors the .dc card, with an optional second source for
// nested sweeps.
type DCProfile struct {
	Source  string `yaml:"source"`
	Start   string `yaml:"start"`
	Stop    string `yaml:"stop"`
	Step    string `yaml:"step"`
	Source2 string `yaml:"source2,omitempty"`
	Start2  string `yaml:"start2,omitempty"`
	Stop2   string `yaml:"stop2,omitempty"`
	Step2   string `yaml:"step2,omitempty"`
}

// Convergence overrides the Newton iteration limits; zero fields keep
// the analysis defaults.
type Convergence struct {
	MaxIter int     `yaml:"max_iter,omitempty"`
	Abstol  float64 `yaml:"abstol,omitempty"`
	Reltol  float64 `yaml:"reltol,omitempty"`
}

// LoadProfile decodes and validates one YAML profile document.
// Unknown fields are rejected.
func LoadProfile(r io.Reader) (Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	p.Analysis = strings.ToLower(strings.TrimSpace(p.Analysis))
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadProfileFile reads a profile from disk.
func LoadProfileFile(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("opening profile: %w", err)
	}
	defer f.Close()

	p, err := LoadProfile(f)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks the analysis kind and the fields it requires.
func (p Profile) Validate() error {
	switch p.Analysis {
	case "op":
	case "tran":
		if p.Tran.Step == "" || p.Tran.Stop == "" {
			return fmt.Errorf("tran profile needs step and stop")
		}
	case "ac":
		if p.AC.Sweep == "" || p.AC.Start == "" || p.AC.Stop == "" {
			return fmt.Errorf("ac profile needs sweep, start and stop")
		}
		if p.AC.Points < 1 {
			return fmt.Errorf("ac profile needs at least one point")
		}
	case "dc":
		if p.DC.Source == "" || p.DC.Step == "" {
			return fmt.Errorf("dc profile needs source and step")
		}
		if p.DC.Source2 != "" && p.DC.Step2 == "" {
			return fmt.Errorf("dc profile needs step2 for the nested sweep")
		}
	case "":
		return fmt.Errorf("profile missing analysis kind")
	default:
		return fmt.Errorf("unknown analysis kind %q", p.Analysis)
	}
	return nil
}

// Kelvin converts the profile temperature; zero stays zero so the
// circuit default applies.
func (p Profile) Kelvin() float64 {
	if p.Temp == 0 {
		return 0
	}
	return p.Temp + consts.KELVIN
}

// Runner is the surface shared by the analysis types.
type Runner interface {
	Setup(*circuit.Circuit) error
	Execute() error
	GetResults() map[string][]float64
	SetLogger(simlog.Logger)
	SetConvergence(maxIter int, abstol, reltol float64)
}

// Analyzer constructs the analysis the profile selects.
func (p Profile) Analyzer() (Runner, error) {
	switch p.Analysis {
	case "op":
		return analysis.NewOP(), nil

	case "tran":
		step, err := quantity("tran step", p.Tran.Step)
		if err != nil {
			return nil, err
		}
		stop, err := quantity("tran stop", p.Tran.Stop)
		if err != nil {
			return nil, err
		}
		start, err := quantity("tran start", p.Tran.Start)
		if err != nil {
			return nil, err
		}
		max, err := quantity("tran max", p.Tran.Max)
		if err != nil {
			return nil, err
		}
		return analysis.NewTransient(start, stop, step, max, p.Tran.UIC), nil

	case "ac":
		start, err := quantity("ac start", p.AC.Start)
		if err != nil {
			return nil, err
		}
		stop, err := quantity("ac stop", p.AC.Stop)
		if err != nil {
			return nil, err
		}
		return analysis.NewAC(start, stop, p.AC.Points, p.AC.Sweep), nil

	case "dc":
		start, err := quantity("dc start", p.DC.Start)
		if err != nil {
			return nil, err
		}
		stop, err := quantity("dc stop", p.DC.Stop)
		if err != nil {
			return nil, err
		}
		step, err := quantity("dc step", p.DC.Step)
		if err != nil {
			return nil, err
		}
		sources := []string{p.DC.Source}
		starts := []float64{start}
		stops := []float64{stop}
		steps := []float64{step}
		if p.DC.Source2 != "" {
			start2, err := quantity("dc start2", p.DC.Start2)
			if err != nil {
				return nil, err
			}
			stop2, err := quantity("dc stop2", p.DC.Stop2)
			if err != nil {
				return nil, err
			}
			step2, err := quantity("dc step2", p.DC.Step2)
			if err != nil {
				return nil, err
			}
			sources = append(sources, p.DC.Source2)
			starts = append(starts, start2)
			stops = append(stops, stop2)
			steps = append(steps, step2)
		}
		return analysis.NewDCSweep(sources, starts, stops, steps), nil
	}

	return nil, fmt.Errorf("unknown analysis kind %q", p.Analysis)
}

// quantity parses a SPICE value string; empty means zero.
func quantity(field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := deck.ParseValue(s)
	if err != nil {
		return 0, fmt.Errorf("profile %s: %v", field, err)
	}
	return v, nil
}
