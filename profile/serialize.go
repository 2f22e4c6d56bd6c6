package profile

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// SerializeRequest converts one request record into its export object.
func SerializeRequest(r RequestRecord) (*Object, error) {
	inputs := NewObject()
	for i, fields := range r.Inputs {
		if err := addFields(inputs, fields); err != nil {
			return nil, fmt.Errorf("request input %d: %w", i, err)
		}
	}

	responseTimes := make([]int64, len(r.ResponseTimes))
	for i, ts := range r.ResponseTimes {
		responseTimes[i] = unixNanos(ts)
	}

	outputs := make([]*Object, len(r.Outputs))
	for i, fields := range r.Outputs {
		out := NewObject()
		if err := addFields(out, fields); err != nil {
			return nil, fmt.Errorf("response output %d: %w", i, err)
		}
		outputs[i] = out
	}

	obj := NewObject()
	obj.Set("timestamp", unixNanos(r.Start))
	obj.Set("sequence_id", r.SequenceID)
	obj.Set("request_inputs", inputs)
	obj.Set("response_timestamps", responseTimes)
	obj.Set("response_outputs", outputs)

	return obj, nil
}

// SerializeExperiment converts one experiment into its export object.
func SerializeExperiment(e Experiment) (*Object, error) {
	requests := make([]*Object, len(e.Requests))
	for i, r := range e.Requests {
		obj, err := SerializeRequest(r)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		requests[i] = obj
	}

	windows := e.WindowBoundaries
	if windows == nil {
		windows = []uint64{}
	}

	obj := NewObject()
	obj.Set("experiment", serializeMode(e.Mode))
	obj.Set("requests", requests)
	obj.Set("window_boundaries", windows)

	return obj, nil
}

func serializeMode(m LoadMode) *Object {
	obj := NewObject()
	obj.Set("mode", m.Name())
	if m.Concurrency != 0 {
		obj.Set("value", m.Concurrency)
	} else {
		obj.Set("value", m.RequestRate)
	}

	return obj
}

// addFields decodes each field into dst, in key order so repeated exports
// of the same record are byte-identical.
func addFields(dst *Object, fields Fields) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		v, err := fields[name].Value()
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		dst.Set(name, v)
	}

	return nil
}

// unixNanos returns t as nanoseconds since the Unix epoch. An unset time is
// the epoch itself.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}
