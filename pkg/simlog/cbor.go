package simlog

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
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

// CBORWriter appends events to a stream as canonical CBOR records.
// The stream can be replayed later with ReadAll.
type CBORWriter struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	err error
}

func NewCBORWriter(w io.Writer) *CBORWriter {
	return &CBORWriter{enc: encMode.NewEncoder(w)}
}

func (c *CBORWriter) Log(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.err = c.enc.Encode(ev)
}

// Err reports the first encode failure. The writer stops emitting
// after one.
func (c *CBORWriter) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ReadAll decodes an event stream produced by CBORWriter.
func ReadAll(r io.Reader) ([]Event, error) {
	dec := cbor.NewDecoder(r)
	var events []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, err
		}
		events = append(events, ev)
	}
}
