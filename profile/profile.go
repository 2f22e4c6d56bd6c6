// Package profile assembles captured benchmark telemetry into the profile
// export document and writes it to disk.
package profile

import (
	"errors"
	"time"

	"github.com/weiihann/perfexport/record"
)

var (
	// ErrEmptyOutputPath is returned when no destination path is given.
	ErrEmptyOutputPath = errors.New("empty output path")

	// ErrFileOpen is returned when the destination cannot be written.
	ErrFileOpen = errors.New("failed to open file for writing profile export")

	// ErrInvalidServiceKind is returned for a ServiceKind outside the
	// known set.
	ErrInvalidServiceKind = errors.New("invalid service kind")
)

// Fields maps field names to captured payloads for one request input or
// one response chunk.
type Fields map[string]record.RecordData

// RequestRecord is the telemetry captured for one request/response
// exchange.
type RequestRecord struct {
	Start         time.Time
	ResponseTimes []time.Time
	Inputs        []Fields
	Outputs       []Fields
	SequenceID    uint64

	// Collector bookkeeping, carried through unchanged.
	Delayed             bool
	HasNullLastResponse bool
}

// LoadMode describes how load was generated for an experiment. Concurrency
// takes precedence when it is non-zero.
type LoadMode struct {
	Concurrency uint64
	RequestRate float64
}

// Name returns the export token for the controlling load parameter.
func (m LoadMode) Name() string {
	if m.Concurrency != 0 {
		return "concurrency"
	}

	return "request_rate"
}

// Level returns the controlling load parameter as a float.
func (m LoadMode) Level() float64 {
	if m.Concurrency != 0 {
		return float64(m.Concurrency)
	}

	return m.RequestRate
}

// Experiment is one load level of a benchmark run.
type Experiment struct {
	Mode             LoadMode
	Requests         []RequestRecord
	WindowBoundaries []uint64
}

// Metadata describes the run an export belongs to.
type Metadata struct {
	Version     string
	ServiceKind ServiceKind
	Endpoint    string
}
