package sim

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/breadboard-eda/breadboard/pkg/modellib"
	"github.com/breadboard-eda/breadboard/pkg/schematic"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

// BatchRun names one simulation of a batch: a profile plus the input
// levels to apply before it runs.
type BatchRun struct {
	Name    string
	Profile Profile
	Digital map[string]bool
	Analog  map[string]float64
}

// Batch fans a set of named runs out over one module. Every run builds
// its own circuit, so the runs are independent and execute
// concurrently up to the limit.
type Batch struct {
	module *schematic.Module
	lib    *modellib.Library
	log    simlog.Logger
	limit  int
	runs   []BatchRun

	mu      sync.Mutex
	results map[string]*Result
}

// NewBatch prepares an empty batch over a module. A nil library falls
// back to Builtin.
func NewBatch(m *schematic.Module, lib *modellib.Library) *Batch {
	if lib == nil {
		lib = modellib.Builtin()
	}
	return &Batch{
		module:  m,
		lib:     lib,
		log:     simlog.Noop{},
		limit:   runtime.NumCPU(),
		results: make(map[string]*Result),
	}
}

// SetLogger installs the engine event sink shared by all runs.
func (b *Batch) SetLogger(l simlog.Logger) {
	if l == nil {
		l = simlog.Noop{}
	}
	b.log = l
}

// SetLimit bounds the number of concurrently executing runs.
func (b *Batch) SetLimit(n int) {
	if n > 0 {
		b.limit = n
	}
}

// Add queues a run. Names must be unique and nonempty.
func (b *Batch) Add(run BatchRun) error {
	if run.Name == "" {
		return fmt.Errorf("batch run needs a name")
	}
	for _, queued := range b.runs {
		if queued.Name == run.Name {
			return fmt.Errorf("duplicate run name %s", run.Name)
		}
	}
	if err := run.Profile.Validate(); err != nil {
		return fmt.Errorf("run %s: %w", run.Name, err)
	}
	b.runs = append(b.runs, run)
	return nil
}

// RunAll executes the queued runs. The first failure cancels the rest
// and is returned; results of completed runs stay retrievable.
func (b *Batch) RunAll(ctx context.Context) error {
	b.mu.Lock()
	b.results = make(map[string]*Result)
	b.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for _, run := range b.runs {
		g.Go(func() error {
			s, err := NewSimulator(b.module, b.lib, run.Profile)
			if err != nil {
				return fmt.Errorf("run %s: %w", run.Name, err)
			}
			s.SetLogger(b.log)
			for name, high := range run.Digital {
				if err := s.SetDigitalInput(name, high); err != nil {
					return fmt.Errorf("run %s: %w", run.Name, err)
				}
			}
			for name, volts := range run.Analog {
				if err := s.SetAnalogInput(name, volts); err != nil {
					return fmt.Errorf("run %s: %w", run.Name, err)
				}
			}

			res, err := s.Run(ctx)
			if err != nil {
				return fmt.Errorf("run %s: %w", run.Name, err)
			}
			b.mu.Lock()
			b.results[run.Name] = res
			b.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Result returns a completed run by name.
func (b *Batch) Result(name string) (*Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res, ok := b.results[name]
	return res, ok
}

// Names lists the completed runs in sorted order.
func (b *Batch) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.results))
	for name := range b.results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Results returns the completed runs sorted by name.
func (b *Batch) Results() []*Result {
	names := b.Names()
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Result, 0, len(names))
	for _, name := range names {
		out = append(out, b.results[name])
	}
	return out
}
