// Package synth generates deterministic synthetic telemetry snapshots.
// They stand in for a real collector when exercising the exporter: each
// experiment carries requests with typed inputs (text, token ids, sampling
// parameters) and streamed response chunks.
package synth

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	mrand "math/rand"
	"strings"
	"time"

	"github.com/weiihann/perfexport/collector"
	"github.com/weiihann/perfexport/profile"
	"github.com/weiihann/perfexport/record"
)

// baseTime anchors every generated timeline so output depends only on the
// seed.
var baseTime = time.Unix(1_700_000_000, 0)

var vocabulary = []string{
	"the", "model", "returns", "a", "token", "stream", "for", "each",
	"prompt", "and", "latency", "is", "measured", "per", "chunk", "while",
	"requests", "arrive", "at", "fixed", "rate", "or", "concurrency",
}

// Summary contains statistics about the generated snapshot.
type Summary struct {
	Experiments int
	Requests    int
	Responses   int
	Fields      int
}

// Config controls snapshot generation parameters.
type Config struct {
	Concurrency           []uint64
	RequestRates          []float64
	RequestsPerExperiment int
	MaxResponses          int
	PromptWords           int
	Windows               int
	Sequenced             bool
	Arrival               string
	Seed                  int64
}

// Generator produces deterministic snapshots from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config. Negative counts
// are treated as zero.
func NewGenerator(cfg Config) *Generator {
	cfg.RequestsPerExperiment = max(cfg.RequestsPerExperiment, 0)
	cfg.MaxResponses = max(cfg.MaxResponses, 0)
	cfg.PromptWords = max(cfg.PromptWords, 0)
	cfg.Windows = max(cfg.Windows, 0)

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate builds one experiment per concurrency level followed by one per
// request rate.
func (g *Generator) Generate() ([]profile.Experiment, Summary) {
	var summary Summary

	modes := make([]profile.LoadMode, 0, len(g.cfg.Concurrency)+len(g.cfg.RequestRates))
	for _, c := range g.cfg.Concurrency {
		modes = append(modes, profile.LoadMode{Concurrency: c})
	}
	for _, rate := range g.cfg.RequestRates {
		modes = append(modes, profile.LoadMode{RequestRate: rate})
	}

	experiments := make([]profile.Experiment, 0, len(modes))
	clock := baseTime

	for _, mode := range modes {
		exp, end := g.experiment(mode, clock, &summary)
		experiments = append(experiments, exp)
		summary.Experiments++

		// Leave a gap between load levels.
		clock = end.Add(time.Second)
	}

	return experiments, summary
}

// WriteSnapshot generates a snapshot and writes it to w as JSON.
func (g *Generator) WriteSnapshot(w io.Writer) (Summary, error) {
	experiments, summary := g.Generate()

	if err := collector.Encode(w, experiments); err != nil {
		return summary, fmt.Errorf("encode snapshot: %w", err)
	}

	return summary, nil
}

func (g *Generator) experiment(
	mode profile.LoadMode,
	start time.Time,
	summary *Summary,
) (profile.Experiment, time.Time) {
	requests := make([]profile.RequestRecord, 0, g.cfg.RequestsPerExperiment)
	arrival := start
	end := start

	for i := 0; i < g.cfg.RequestsPerExperiment; i++ {
		arrival = arrival.Add(g.interArrival(mode))

		r := g.request(arrival)
		if g.cfg.Sequenced {
			r.SequenceID = g.sequenceID(mode, i)
		}

		if last := r.ResponseTimes[len(r.ResponseTimes)-1]; last.After(end) {
			end = last
		}

		summary.Requests++
		summary.Responses += len(r.Outputs)
		summary.Fields += len(r.Inputs[0])
		for _, out := range r.Outputs {
			summary.Fields += len(out)
		}

		requests = append(requests, r)
	}

	return profile.Experiment{
		Mode:             mode,
		Requests:         requests,
		WindowBoundaries: windowBoundaries(start, end, g.cfg.Windows),
	}, end
}

func (g *Generator) request(start time.Time) profile.RequestRecord {
	words := g.words(max(1, g.cfg.PromptWords/2+g.rng.Intn(g.cfg.PromptWords+1)))

	ids := make([]int64, len(words))
	for i := range ids {
		ids[i] = int64(g.rng.Intn(32000))
	}

	responses := 1
	if g.cfg.MaxResponses > 1 {
		responses = 1 + g.rng.Intn(g.cfg.MaxResponses)
	}

	inputs := profile.Fields{
		"text_input":  bytesField(strings.Join(words, " ")),
		"input_ids":   int64sField(ids),
		"max_tokens":  int32Field(int32(16 + g.rng.Intn(241))),
		"stream":      boolField(responses > 1),
		"temperature": fp32Field(float32(math.Round(g.rng.Float64()*20) / 20)),
		"parameters": {
			Buf:  []byte(fmt.Sprintf(`{"top_p":%.2f,"seed":%d}`, 0.5+g.rng.Float64()/2, g.rng.Intn(1000))),
			Type: record.TypeJSON,
		},
	}

	responseTimes := make([]time.Time, responses)
	outputs := make([]profile.Fields, responses)

	// Time to first response, then inter-chunk gaps.
	at := start.Add(time.Duration(20+g.rng.Intn(180)) * time.Millisecond)
	for i := range responseTimes {
		if i > 0 {
			at = at.Add(time.Duration(5+g.rng.Intn(25)) * time.Millisecond)
		}
		responseTimes[i] = at
		outputs[i] = profile.Fields{
			"text_output": bytesField(g.words(1)[0] + " "),
		}
	}

	return profile.RequestRecord{
		Start:         start,
		ResponseTimes: responseTimes,
		Inputs:        []profile.Fields{inputs},
		Outputs:       outputs,
	}
}

func (g *Generator) interArrival(mode profile.LoadMode) time.Duration {
	// Concurrency mode keeps a closed loop busy; requests start back to back.
	if mode.Concurrency != 0 || mode.RequestRate <= 0 {
		return time.Duration(1+g.rng.Intn(5)) * time.Millisecond
	}

	mean := float64(time.Second) / mode.RequestRate

	switch g.cfg.Arrival {
	case "poisson":
		return time.Duration(g.rng.ExpFloat64() * mean)

	case "uniform":
		return time.Duration(g.rng.Float64() * 2 * mean)

	case "constant":
		return time.Duration(mean)

	default:
		// Fall back to constant if unknown arrival pattern.
		return time.Duration(mean)
	}
}

func (g *Generator) sequenceID(mode profile.LoadMode, i int) uint64 {
	streams := mode.Concurrency
	if streams == 0 {
		streams = 4
	}

	return 1 + uint64(i)%streams
}

func (g *Generator) words(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = vocabulary[g.rng.Intn(len(vocabulary))]
	}

	return out
}

// windowBoundaries splits [start, end] into n equal windows and returns the
// n+1 boundaries in Unix nanoseconds.
func windowBoundaries(start, end time.Time, n int) []uint64 {
	if n <= 0 {
		return []uint64{}
	}

	span := end.Sub(start)
	out := make([]uint64, n+1)
	for i := range out {
		out[i] = uint64(start.Add(span * time.Duration(i) / time.Duration(n)).UnixNano())
	}

	return out
}

func bytesField(s string) record.RecordData {
	return record.RecordData{Buf: []byte(s), Type: record.TypeBytes}
}

func boolField(v bool) record.RecordData {
	var b byte
	if v {
		b = 1
	}

	return record.RecordData{Buf: []byte{b}, Type: record.TypeBool}
}

func int32Field(v int32) record.RecordData {
	return record.RecordData{
		Buf:  binary.NativeEndian.AppendUint32(nil, uint32(v)),
		Type: record.TypeInt32,
	}
}

func fp32Field(v float32) record.RecordData {
	return record.RecordData{
		Buf:  binary.NativeEndian.AppendUint32(nil, math.Float32bits(v)),
		Type: record.TypeFP32,
	}
}

func int64sField(vals []int64) record.RecordData {
	buf := make([]byte, 0, 8*len(vals))
	for _, v := range vals {
		buf = binary.NativeEndian.AppendUint64(buf, uint64(v))
	}

	return record.RecordData{Buf: buf, Type: record.TypeInt64}
}
