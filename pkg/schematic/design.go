package schematic

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Design is the registry: modules by unique name, the Design-wide net-ID
// counter and the per-class reference-designator counters. A Design is
// built from one goroutine; construction is not synchronized.
type Design struct {
	modules map[string]*Module
	order   []string
	nextNet int
	refdes  map[string]int
}

func NewDesign() *Design {
	return &Design{
		modules: make(map[string]*Module),
		nextNet: 1,
		refdes:  make(map[string]int),
	}
}

// NewModule registers a named module. Module names are unique per
// Design.
func (d *Design) NewModule(name string) (*Module, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.Wrap(ErrBadName, "module name is empty")
	}
	if _, exists := d.modules[name]; exists {
		return nil, errors.Wrapf(ErrDuplicateModule, "module %q", name)
	}

	m := &Module{
		design:  d,
		name:    name,
		signals: make(map[string]*Signal),
		parts:   make(map[string]Part),
	}
	d.modules[name] = m
	d.order = append(d.order, name)
	return m, nil
}

// Module looks a registered module up by name.
func (d *Design) Module(name string) (*Module, bool) {
	m, ok := d.modules[name]
	return m, ok
}

// ModuleNames returns module names in registration order.
func (d *Design) ModuleNames() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// allocNetID hands out the next net ID. IDs start at 1, strictly
// increase across the whole Design and are never recycled.
func (d *Design) allocNetID() int {
	id := d.nextNet
	d.nextNet++
	return id
}

// nextRef generates the next reference designator for a device class,
// skipping names the module already uses.
func (d *Design) nextRef(class string, m *Module) string {
	for {
		d.refdes[class]++
		name := fmt.Sprintf("%s%d", class, d.refdes[class])
		if _, taken := m.parts[name]; !taken {
			return name
		}
	}
}

// The process-global default Design backs the package-level convenience
// functions, mirroring registry-at-definition-time construction.
var defaultDesign = NewDesign()

// Default returns the process-global Design.
func Default() *Design {
	return defaultDesign
}

// Reset swaps in a fresh default Design. Tests use it to isolate
// registries.
func Reset() {
	defaultDesign = NewDesign()
}

// NewModule registers a module in the default Design.
func NewModule(name string) (*Module, error) {
	return defaultDesign.NewModule(name)
}
