// Package rawfile stores simulation results as a compact binary
// container. One file holds a header identifying the run and the
// result series in column-major order, CBOR-encoded canonically so
// identical runs produce identical bytes apart from id and timestamp.
package rawfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const (
	Magic   = "BBRAW"
	Version = 1
)

var encMode cbor.EncMode

func init() {
	opts := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic(err)
	}
}

// Header identifies a stored run.
type Header struct {
	Magic     string    `cbor:"magic"`
	Version   int       `cbor:"version"`
	RunID     string    `cbor:"run_id"`
	Title     string    `cbor:"title"`
	Analysis  string    `cbor:"analysis"`
	Created   time.Time `cbor:"created"`
	Variables []string  `cbor:"variables"`
}

// File couples a header with one column per variable, parallel to
// Header.Variables.
type File struct {
	Header  Header
	Columns [][]float64
}

type payload struct {
	Header  Header      `cbor:"header"`
	Columns [][]float64 `cbor:"columns"`
}

// New assembles a file from named series. Independent variables come
// first (TIME, FREQ, SWEEP1, SWEEP2), the rest follow sorted by name.
func New(runID, title, analysis string, series map[string][]float64) *File {
	vars := orderVariables(series)
	columns := make([][]float64, len(vars))
	for i, name := range vars {
		columns[i] = series[name]
	}

	return &File{
		Header: Header{
			RunID:     runID,
			Title:     title,
			Analysis:  analysis,
			Variables: vars,
		},
		Columns: columns,
	}
}

func orderVariables(series map[string][]float64) []string {
	leaders := []string{"TIME", "FREQ", "SWEEP1", "SWEEP2"}

	out := make([]string, 0, len(series))
	taken := make(map[string]bool, len(leaders))
	for _, name := range leaders {
		if _, ok := series[name]; ok {
			out = append(out, name)
			taken[name] = true
		}
	}

	rest := make([]string, 0, len(series))
	for name := range series {
		if !taken[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(out, rest...)
}

// Series reassembles the columns into a name-keyed map.
func (f *File) Series() map[string][]float64 {
	out := make(map[string][]float64, len(f.Header.Variables))
	for i, name := range f.Header.Variables {
		if i < len(f.Columns) {
			out[name] = f.Columns[i]
		}
	}
	return out
}

// Write encodes the file. Magic and version are always stamped by the
// writer; a missing run id or timestamp is filled in.
func Write(w io.Writer, f *File) error {
	if len(f.Columns) != len(f.Header.Variables) {
		return fmt.Errorf("raw file has %d columns for %d variables",
			len(f.Columns), len(f.Header.Variables))
	}
	for i := 1; i < len(f.Columns); i++ {
		if len(f.Columns[i]) != len(f.Columns[0]) {
			return fmt.Errorf("column %s length %d does not match %s length %d",
				f.Header.Variables[i], len(f.Columns[i]),
				f.Header.Variables[0], len(f.Columns[0]))
		}
	}

	p := payload{Header: f.Header, Columns: f.Columns}
	p.Header.Magic = Magic
	p.Header.Version = Version
	if p.Header.RunID == "" {
		p.Header.RunID = uuid.NewString()
	}
	if p.Header.Created.IsZero() {
		p.Header.Created = time.Now().UTC()
	}

	return encMode.NewEncoder(w).Encode(p)
}

// Read decodes one raw file and verifies its identity.
func Read(r io.Reader) (*File, error) {
	var p payload
	if err := cbor.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding raw file: %w", err)
	}

	if p.Header.Magic != Magic {
		return nil, errors.New("not a breadboard raw file")
	}
	if p.Header.Version != Version {
		return nil, fmt.Errorf("unsupported raw file version %d", p.Header.Version)
	}

	return &File{Header: p.Header, Columns: p.Columns}, nil
}

func WriteFile(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating raw file: %w", err)
	}

	if err := Write(out, f); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func ReadFile(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raw file: %w", err)
	}
	defer in.Close()

	f, err := Read(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
