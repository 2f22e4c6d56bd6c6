// Package collector reads and writes the telemetry snapshots a load
// generator produces at the end of a benchmark run, and runs generators
// that print their snapshot to stdout.
package collector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/snappy"

	"github.com/weiihann/perfexport/profile"
	"github.com/weiihann/perfexport/record"
)

// Snapshot is the on-disk form of a run's captured telemetry.
type Snapshot struct {
	Experiments []Experiment `json:"experiments"`
}

// Experiment is one load level in a Snapshot.
type Experiment struct {
	Mode             LoadMode  `json:"mode"`
	Requests         []Request `json:"requests"`
	WindowBoundaries []uint64  `json:"window_boundaries"`
}

// LoadMode mirrors profile.LoadMode.
type LoadMode struct {
	Concurrency uint64  `json:"concurrency"`
	RequestRate float64 `json:"request_rate"`
}

// Request is one captured request/response exchange. Timestamps are Unix
// nanoseconds.
type Request struct {
	StartTimeNs         int64              `json:"start_time_ns"`
	ResponseTimesNs     []int64            `json:"response_times_ns"`
	RequestInputs       []map[string]Field `json:"request_inputs"`
	ResponseOutputs     []map[string]Field `json:"response_outputs"`
	SequenceID          uint64             `json:"sequence_id"`
	Delayed             bool               `json:"delayed,omitempty"`
	HasNullLastResponse bool               `json:"has_null_last_response,omitempty"`
}

// Field is a captured payload; Data is base64 in JSON.
type Field struct {
	Type record.DataType `json:"type"`
	Data []byte          `json:"data"`
}

// snappyExt marks snapshot files stored as snappy framed streams.
const snappyExt = ".sz"

// Decode reads a JSON snapshot from r.
func Decode(r io.Reader) ([]profile.Experiment, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	return snap.Profile(), nil
}

// Encode writes experiments to w as a JSON snapshot.
func Encode(w io.Writer, experiments []profile.Experiment) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return enc.Encode(FromExperiments(experiments))
}

// Load reads a snapshot file. Files ending in .sz are snappy compressed.
func Load(path string) ([]profile.Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, snappyExt) {
		r = snappy.NewReader(r)
	}

	experiments, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	return experiments, nil
}

// Save writes experiments to path as a snapshot, compressing when the path
// ends in .sz.
func Save(path string, experiments []profile.Experiment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)

	var w io.Writer = bw

	var sw *snappy.Writer
	if strings.HasSuffix(path, snappyExt) {
		sw = snappy.NewBufferedWriter(bw)
		w = sw
	}

	if err := Encode(w, experiments); err != nil {
		f.Close()

		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}

	if sw != nil {
		if err := sw.Close(); err != nil {
			f.Close()

			return fmt.Errorf("flush snapshot %s: %w", path, err)
		}
	}

	if err := bw.Flush(); err != nil {
		f.Close()

		return fmt.Errorf("flush snapshot %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot %s: %w", path, err)
	}

	return nil
}

// Profile converts the snapshot into profile experiments.
func (s Snapshot) Profile() []profile.Experiment {
	out := make([]profile.Experiment, len(s.Experiments))
	for i, e := range s.Experiments {
		requests := make([]profile.RequestRecord, len(e.Requests))
		for j, r := range e.Requests {
			requests[j] = r.toRecord()
		}

		out[i] = profile.Experiment{
			Mode: profile.LoadMode{
				Concurrency: e.Mode.Concurrency,
				RequestRate: e.Mode.RequestRate,
			},
			Requests:         requests,
			WindowBoundaries: e.WindowBoundaries,
		}
	}

	return out
}

func (r Request) toRecord() profile.RequestRecord {
	responseTimes := make([]time.Time, len(r.ResponseTimesNs))
	for i, ns := range r.ResponseTimesNs {
		responseTimes[i] = time.Unix(0, ns)
	}

	return profile.RequestRecord{
		Start:               time.Unix(0, r.StartTimeNs),
		ResponseTimes:       responseTimes,
		Inputs:              toFields(r.RequestInputs),
		Outputs:             toFields(r.ResponseOutputs),
		SequenceID:          r.SequenceID,
		Delayed:             r.Delayed,
		HasNullLastResponse: r.HasNullLastResponse,
	}
}

func toFields(raw []map[string]Field) []profile.Fields {
	out := make([]profile.Fields, len(raw))
	for i, m := range raw {
		fields := make(profile.Fields, len(m))
		for name, f := range m {
			fields[name] = record.RecordData{Buf: f.Data, Type: f.Type}
		}
		out[i] = fields
	}

	return out
}

// FromExperiments converts profile experiments into a Snapshot.
func FromExperiments(experiments []profile.Experiment) Snapshot {
	snap := Snapshot{Experiments: make([]Experiment, len(experiments))}

	for i, e := range experiments {
		requests := make([]Request, len(e.Requests))
		for j, r := range e.Requests {
			responseTimes := make([]int64, len(r.ResponseTimes))
			for k, ts := range r.ResponseTimes {
				responseTimes[k] = ts.UnixNano()
			}

			requests[j] = Request{
				StartTimeNs:         r.Start.UnixNano(),
				ResponseTimesNs:     responseTimes,
				RequestInputs:       fromFields(r.Inputs),
				ResponseOutputs:     fromFields(r.Outputs),
				SequenceID:          r.SequenceID,
				Delayed:             r.Delayed,
				HasNullLastResponse: r.HasNullLastResponse,
			}
		}

		snap.Experiments[i] = Experiment{
			Mode: LoadMode{
				Concurrency: e.Mode.Concurrency,
				RequestRate: e.Mode.RequestRate,
			},
			Requests:         requests,
			WindowBoundaries: e.WindowBoundaries,
		}
	}

	return snap
}

func fromFields(fields []profile.Fields) []map[string]Field {
	out := make([]map[string]Field, len(fields))
	for i, m := range fields {
		wire := make(map[string]Field, len(m))
		for name, d := range m {
			wire[name] = Field{Type: d.Type, Data: d.Buf}
		}
		out[i] = wire
	}

	return out
}
