package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Exporter assembles and writes profile exports, logging each step.
type Exporter struct {
	Logger  *slog.Logger
	Metrics *Metrics
	Options []WriteOption
}

// NewExporter creates an Exporter. metrics may be nil.
func NewExporter(logger *slog.Logger, metrics *Metrics, opts ...WriteOption) *Exporter {
	return &Exporter{
		Logger:  logger.With(slog.String("component", "exporter")),
		Metrics: metrics,
		Options: opts,
	}
}

// Export assembles experiments into a document and writes it to path.
func (e *Exporter) Export(
	ctx context.Context,
	experiments []Experiment,
	meta Metadata,
	path string,
) error {
	start := time.Now()

	e.Logger.DebugContext(ctx, "assembling profile export",
		slog.Int("experiments", len(experiments)),
		slog.String("service_kind", meta.ServiceKind.String()),
		slog.String("endpoint", meta.Endpoint),
	)

	doc, err := Assemble(experiments, meta)
	if err != nil {
		return fmt.Errorf("assemble profile export: %w", err)
	}

	if err := WriteFile(doc, path, e.Options...); err != nil {
		return err
	}

	elapsed := time.Since(start)

	var size int64
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}

	if e.Metrics != nil {
		e.Metrics.observeExperiments(experiments)
		e.Metrics.BytesWritten.Add(float64(size))
		e.Metrics.ExportDuration.Observe(elapsed.Seconds())
	}

	e.Logger.InfoContext(ctx, "profile export written",
		slog.String("path", path),
		slog.Int("experiments", len(experiments)),
		slog.Int64("bytes", size),
		slog.Duration("elapsed", elapsed),
	)

	return nil
}
