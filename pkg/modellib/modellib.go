// Package modellib loads device model cards from YAML libraries and
// merges them with the .model cards parsed out of decks. Lookup is
// case-insensitive, matching how SPICE treats model references.
package modellib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/breadboard-eda/breadboard/pkg/device"
)

// Card is one model definition as written in a library file.
type Card struct {
	Name   string             `yaml:"name"`
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params"`
	Doc    string             `yaml:"doc,omitempty"`
}

type libraryFile struct {
	Models []Card `yaml:"models"`
}

var validTypes = map[string]bool{
	"D":    true,
	"NPN":  true,
	"PNP":  true,
	"NMOS": true,
	"PMOS": true,
}

// Library is a set of model cards addressable by name.
type Library struct {
	cards map[string]device.ModelParam // key: lowercased name
	docs  map[string]string
	order []string // original names in load order
}

func New() *Library {
	return &Library{
		cards: make(map[string]device.ModelParam),
		docs:  make(map[string]string),
	}
}

// Add registers a card. Parameter keys are lowercased the way the deck
// parser stores them. Duplicate names and unknown types are errors.
func (l *Library) Add(c Card) error {
	if c.Name == "" {
		return errors.New("model card without a name")
	}

	typ := strings.ToUpper(c.Type)
	if !validTypes[typ] {
		return fmt.Errorf("model %s: unsupported type %q", c.Name, c.Type)
	}

	key := strings.ToLower(c.Name)
	if _, exists := l.cards[key]; exists {
		return fmt.Errorf("duplicate model: %s", c.Name)
	}

	params := make(map[string]float64, len(c.Params))
	for k, v := range c.Params {
		params[strings.ToLower(k)] = v
	}

	l.cards[key] = device.ModelParam{Name: c.Name, Type: typ, Params: params}
	l.order = append(l.order, c.Name)
	if c.Doc != "" {
		l.docs[key] = c.Doc
	}

	return nil
}

// Load reads one or more YAML documents of model cards. Unknown fields
// are rejected so typos in library files surface immediately.
func (l *Library) Load(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	for {
		var doc libraryFile
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decoding model library: %w", err)
		}

		for _, c := range doc.Models {
			if err := l.Add(c); err != nil {
				return err
			}
		}
	}
}

func (l *Library) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening model library: %w", err)
	}
	defer f.Close()

	if err := l.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Lookup finds a card regardless of reference casing.
func (l *Library) Lookup(name string) (device.ModelParam, bool) {
	m, ok := l.cards[strings.ToLower(name)]
	return m, ok
}

// Doc returns the free-text description of a card, if any.
func (l *Library) Doc(name string) string {
	return l.docs[strings.ToLower(name)]
}

// Names returns card names in load order.
func (l *Library) Names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

func (l *Library) Len() int {
	return len(l.order)
}

// Models returns the cards keyed by their original names, the shape
// the deck writer and circuit setup consume.
func (l *Library) Models() map[string]device.ModelParam {
	out := make(map[string]device.ModelParam, len(l.order))
	for _, name := range l.order {
		out[name] = l.cards[strings.ToLower(name)]
	}
	return out
}

// Merge overlays model cards on a base set. An overlay card replaces a
// base card with the same name under case folding, so lookups stay
// unambiguous. Merging library cards under deck-parsed ones chains:
//
//	Merge(Merge(Builtin().Models(), lib.Models()), d.Models)
func Merge(base, overlay map[string]device.ModelParam) map[string]device.ModelParam {
	out := make(map[string]device.ModelParam, len(base)+len(overlay))
	for name, m := range base {
		out[name] = m
	}

	for name, m := range overlay {
		for existing := range out {
			if existing != name && strings.EqualFold(existing, name) {
				delete(out, existing)
			}
		}
		out[name] = m
	}

	return out
}

// Builtin returns the default card set: a generic diode, a 1N4148
// class switching diode, 2N2222/2N2907 class transistors plus plain
// NPN/PNP/NMOS/PMOS cards so bare type references in decks resolve.
func Builtin() *Library {
	l := New()

	cards := []Card{
		{
			Name: "D", Type: "D", Doc: "generic silicon diode",
			Params: map[string]float64{"is": 1e-14, "n": 1.0},
		},
		{
			Name: "1N4148", Type: "D", Doc: "small-signal switching diode",
			Params: map[string]float64{
				"is": 2.52e-9, "n": 1.752, "rs": 0.568,
				"cj0": 4e-12, "m": 0.333, "vj": 0.75,
				"tt": 20e-9, "bv": 75,
			},
		},
		{
			Name: "2N2222", Type: "NPN", Doc: "general purpose NPN",
			Params: map[string]float64{
				"is": 14.34e-15, "bf": 255.9, "br": 6.092,
				"vaf": 74.03, "ikf": 0.2847, "ise": 14.34e-15, "ne": 1.307,
				"cje": 22.01e-12, "vje": 0.75, "mje": 0.377,
				"cjc": 7.306e-12, "vjc": 0.75, "mjc": 0.3416,
				"tf": 411.1e-12, "tr": 46.91e-9, "xtb": 1.5,
			},
		},
		{
			Name: "2N2907", Type: "PNP", Doc: "general purpose PNP",
			Params: map[string]float64{
				"is": 650.6e-18, "bf": 231.7, "br": 3.563,
				"vaf": 115.7, "ikf": 1.079, "ise": 54.81e-15, "ne": 1.829,
				"cje": 19.82e-12, "vje": 0.75, "mje": 0.3357,
				"cjc": 14.76e-12, "vjc": 0.75, "mjc": 0.5383,
				"tf": 603.7e-12, "tr": 111.3e-9, "xtb": 1.5,
			},
		},
		{
			Name: "NPN", Type: "NPN", Doc: "default NPN for bare type references",
			Params: map[string]float64{"is": 1e-16, "bf": 100, "br": 1, "vaf": 100},
		},
		{
			Name: "PNP", Type: "PNP", Doc: "default PNP for bare type references",
			Params: map[string]float64{"is": 1e-16, "bf": 100, "br": 1, "vaf": 100},
		},
		{
			Name: "NMOS", Type: "NMOS", Doc: "default level-1 NMOS",
			Params: map[string]float64{"vto": 0.7, "kp": 110e-6, "lambda": 0.01, "phi": 0.65, "gamma": 0.37},
		},
		{
			Name: "PMOS", Type: "PMOS", Doc: "default level-1 PMOS",
			Params: map[string]float64{"vto": -0.7, "kp": 50e-6, "lambda": 0.02, "phi": 0.65, "gamma": 0.5},
		},
	}

	for _, c := range cards {
		if err := l.Add(c); err != nil {
			panic(err)
		}
	}

	return l
}
