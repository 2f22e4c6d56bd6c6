// Package influx publishes captured requests and response chunks to
// InfluxDB 3 as time-series points.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/InfluxCommunity/influxdb3-go/influxdb3"

	"github.com/weiihann/perfexport/profile"
)

const defaultBatchSize = 5000

const (
	MeasurementRequest  = "request"
	MeasurementResponse = "response"
)

// Sample is one point before conversion to the client's wire type.
type Sample struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Config selects the target database.
type Config struct {
	Host      string
	Token     string
	Database  string
	BatchSize int
}

// pointWriter is the subset of *influxdb3.Client the Writer uses.
type pointWriter interface {
	WritePoints(ctx context.Context, points []*influxdb3.Point, options ...influxdb3.WriteOption) error
	Close() error
}

// Writer sends samples to InfluxDB in batches.
type Writer struct {
	client    pointWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter connects to the database described by cfg.
func NewWriter(cfg Config, logger *slog.Logger) (*Writer, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Host,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("create influx client: %w", err)
	}

	return newWriter(client, cfg.BatchSize, logger.With(
		slog.String("component", "influx"),
		slog.String("database", cfg.Database),
	)), nil
}

func newWriter(client pointWriter, batchSize int, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Writer{client: client, batchSize: batchSize, logger: logger}
}

// Write converts samples to points and writes them in batches. It stops
// at the first failed batch.
func (w *Writer) Write(ctx context.Context, samples []Sample) error {
	points := make([]*influxdb3.Point, 0, min(len(samples), w.batchSize))
	batches := 0

	flush := func() error {
		if len(points) == 0 {
			return nil
		}
		if err := w.client.WritePoints(ctx, points); err != nil {
			return fmt.Errorf("write batch %d: %w", batches, err)
		}
		batches++
		points = points[:0]

		return nil
	}

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}

		points = append(points, influxdb3.NewPoint(s.Measurement, s.Tags, s.Fields, s.Time))
		if len(points) >= w.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "samples written",
		slog.Int("samples", len(samples)),
		slog.Int("batches", batches),
	)

	return nil
}

// Close releases the underlying client.
func (w *Writer) Close() error {
	return w.client.Close()
}

// Samples flattens experiments into one request sample per request and one
// response sample per response chunk, tagged with the run and load mode.
func Samples(runID string, experiments []profile.Experiment) []Sample {
	var out []Sample

	for _, e := range experiments {
		tags := func() map[string]string {
			return map[string]string{
				"run_id": runID,
				"mode":   e.Mode.Name(),
				"value":  strconv.FormatFloat(e.Mode.Level(), 'f', -1, 64),
			}
		}

		for _, r := range e.Requests {
			fields := map[string]any{
				"sequence_id":  int64(r.SequenceID),
				"responses":    int64(len(r.ResponseTimes)),
				"input_bytes":  payloadBytes(r.Inputs),
				"output_bytes": payloadBytes(r.Outputs),
			}
			if len(r.ResponseTimes) > 0 {
				fields["first_response_ns"] = r.ResponseTimes[0].Sub(r.Start).Nanoseconds()
				fields["last_response_ns"] = r.ResponseTimes[len(r.ResponseTimes)-1].Sub(r.Start).Nanoseconds()
			}

			out = append(out, Sample{
				Measurement: MeasurementRequest,
				Tags:        tags(),
				Fields:      fields,
				Time:        r.Start,
			})

			for i, ts := range r.ResponseTimes {
				fields := map[string]any{
					"index":       int64(i),
					"offset_ns":   ts.Sub(r.Start).Nanoseconds(),
					"sequence_id": int64(r.SequenceID),
				}
				if i < len(r.Outputs) {
					fields["output_bytes"] = payloadBytes(r.Outputs[i : i+1])
				}

				out = append(out, Sample{
					Measurement: MeasurementResponse,
					Tags:        tags(),
					Fields:      fields,
					Time:        ts,
				})
			}
		}
	}

	return out
}

func payloadBytes(maps []profile.Fields) int64 {
	var n int64
	for _, fields := range maps {
		for _, f := range fields {
			n += int64(len(f.Buf))
		}
	}

	return n
}
