package schematic

import (
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/util"
)

// Pin attaches a named device pin to a net.
type Pin struct {
	Name   string
	Signal *Signal
}

// Part is a placed device. Class is the single-letter device class that
// prefixes reference designators (R, C, L, D, Q, V, I); SkinType and
// AttrValue feed the netlist exporter.
type Part interface {
	Name() string
	Class() string
	Pins() []Pin
	SkinType() string
	AttrValue() string
}

type Resistor struct {
	name string
	a, b *Signal
	Ohms float64
}

func (r *Resistor) Name() string  { return r.name }
func (r *Resistor) Class() string { return "R" }
func (r *Resistor) Pins() []Pin {
	return []Pin{{"L", r.a}, {"R", r.b}}
}
func (r *Resistor) SkinType() string  { return "resistor" }
func (r *Resistor) AttrValue() string { return util.FormatValue(r.Ohms) }

type Capacitor struct {
	name   string
	a, b   *Signal
	Farads float64
}

func (c *Capacitor) Name() string  { return c.name }
func (c *Capacitor) Class() string { return "C" }
func (c *Capacitor) Pins() []Pin {
	return []Pin{{"L", c.a}, {"R", c.b}}
}
func (c *Capacitor) SkinType() string  { return "capacitor" }
func (c *Capacitor) AttrValue() string { return util.FormatValue(c.Farads) }

type Inductor struct {
	name    string
	a, b    *Signal
	Henries float64
}

func (l *Inductor) Name() string  { return l.name }
func (l *Inductor) Class() string { return "L" }
func (l *Inductor) Pins() []Pin {
	return []Pin{{"L", l.a}, {"R", l.b}}
}
func (l *Inductor) SkinType() string  { return "inductor" }
func (l *Inductor) AttrValue() string { return util.FormatValue(l.Henries) }

type Diode struct {
	name string
	a, k *Signal
	// Model is the model-card name resolved at deck/simulation time.
	Model string
}

func (d *Diode) Name() string  { return d.name }
func (d *Diode) Class() string { return "D" }
func (d *Diode) Pins() []Pin {
	return []Pin{{"A", d.a}, {"K", d.k}}
}
func (d *Diode) SkinType() string  { return "diode" }
func (d *Diode) AttrValue() string { return d.Model }

type BJT struct {
	name    string
	c, b, e *Signal
	Model   string
}

func (q *BJT) Name() string  { return q.name }
func (q *BJT) Class() string { return "Q" }
func (q *BJT) Pins() []Pin {
	return []Pin{{"C", q.c}, {"B", q.b}, {"E", q.e}}
}

// SkinType picks the drawing symbol from the model name. Polarity for
// simulation comes from the model card itself; the skin only needs to
// be right for names that say which they are.
func (q *BJT) SkinType() string {
	if strings.Contains(strings.ToUpper(q.Model), "PNP") {
		return "transistor-pnp"
	}
	return "transistor-npn"
}
func (q *BJT) AttrValue() string { return q.Model }

type VoltageSource struct {
	name  string
	p, n  *Signal
	Volts float64
}

func (v *VoltageSource) Name() string  { return v.name }
func (v *VoltageSource) Class() string { return "V" }
func (v *VoltageSource) Pins() []Pin {
	return []Pin{{"P", v.p}, {"N", v.n}}
}
func (v *VoltageSource) SkinType() string  { return "vsource" }
func (v *VoltageSource) AttrValue() string { return util.FormatValue(v.Volts) }

type CurrentSource struct {
	name string
	p, n *Signal
	Amps float64
}

func (i *CurrentSource) Name() string  { return i.name }
func (i *CurrentSource) Class() string { return "I" }
func (i *CurrentSource) Pins() []Pin {
	return []Pin{{"P", i.p}, {"N", i.n}}
}
func (i *CurrentSource) SkinType() string  { return "isource" }
func (i *CurrentSource) AttrValue() string { return util.FormatValue(i.Amps) }
