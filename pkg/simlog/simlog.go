// Package simlog carries engine progress events to pluggable sinks.
// Analyses log phase starts and ends, Newton retries, gmin-ladder steps
// and timestep rejections; sinks format or persist them.
package simlog

import "time"

// Phases emitted by the analyses.
const (
	PhaseStart    = "start"
	PhaseEnd      = "end"
	PhaseGminStep = "gmin_step"
	PhaseRetry    = "retry"
	PhaseReject   = "reject"
)

// Event is one engine progress record. Zero-valued fields are not
// meaningful for every analysis; sinks skip them.
type Event struct {
	Time      time.Time `cbor:"time"`
	Analysis  string    `cbor:"analysis,omitempty"`
	Phase     string    `cbor:"phase,omitempty"`
	Iter      int       `cbor:"iter,omitempty"`
	Gmin      float64   `cbor:"gmin,omitempty"`
	SimTime   float64   `cbor:"sim_time,omitempty"`
	Step      float64   `cbor:"step,omitempty"`
	Freq      float64   `cbor:"freq,omitempty"`
	Sweep     float64   `cbor:"sweep,omitempty"`
	Converged bool      `cbor:"converged,omitempty"`
	Detail    string    `cbor:"detail,omitempty"`
}

// Logger consumes events. Implementations must tolerate being called
// from a single analysis goroutine at a time.
type Logger interface {
	Log(Event)
}

// Noop drops every event. It is the default for library use.
type Noop struct{}

func (Noop) Log(Event) {}

type multi []Logger

func (m multi) Log(ev Event) {
	for _, l := range m {
		l.Log(ev)
	}
}

// Multi fans events out to several sinks.
func Multi(loggers ...Logger) Logger {
	out := make(multi, 0, len(loggers))
	for _, l := range loggers {
		if l == nil {
			continue
		}
		out = append(out, l)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
