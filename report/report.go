// Package report summarizes captured experiments into tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/weiihann/perfexport/profile"
)

// Row is the summary of one experiment.
type Row struct {
	Mode         string `json:"mode"`
	Value        string `json:"value"`
	Requests     int    `json:"requests"`
	Responses    int    `json:"responses"`
	Windows      int    `json:"windows"`
	PayloadBytes uint64 `json:"payload_bytes"`
	Sequences    int    `json:"sequences"`
	SpanMs       int64  `json:"span_ms"`

	// Requests whose response timestamps and outputs differ in length.
	Inconsistent int `json:"inconsistent"`
}

// Summarize builds one Row per experiment, in order.
func Summarize(experiments []profile.Experiment) []Row {
	rows := make([]Row, 0, len(experiments))

	for _, e := range experiments {
		row := Row{
			Mode:     e.Mode.Name(),
			Value:    formatLevel(e.Mode),
			Requests: len(e.Requests),
		}

		if len(e.WindowBoundaries) > 1 {
			row.Windows = len(e.WindowBoundaries) - 1
		}

		sequences := make(map[uint64]struct{})

		var first, last int64
		for i, r := range e.Requests {
			row.Responses += len(r.ResponseTimes)
			row.PayloadBytes += payloadBytes(r.Inputs) + payloadBytes(r.Outputs)

			if len(r.ResponseTimes) != len(r.Outputs) {
				row.Inconsistent++
			}
			if r.SequenceID != 0 {
				sequences[r.SequenceID] = struct{}{}
			}

			start := r.Start.UnixNano()
			if i == 0 || start < first {
				first = start
			}
			end := start
			if n := len(r.ResponseTimes); n > 0 {
				end = r.ResponseTimes[n-1].UnixNano()
			}
			if end > last {
				last = end
			}
		}

		row.Sequences = len(sequences)
		if last > first {
			row.SpanMs = (last - first) / 1_000_000
		}

		rows = append(rows, row)
	}

	return rows
}

// Generate writes a markdown summary table for the given experiments.
func Generate(w io.Writer, experiments []profile.Experiment) error {
	if len(experiments) == 0 {
		return fmt.Errorf("no experiments to report")
	}

	rows := Summarize(experiments)

	// Header.
	fmt.Fprintln(w, "## Capture Summary")
	fmt.Fprintln(w)

	// Consistency check.
	if inconsistent := countInconsistent(rows); inconsistent == 0 {
		fmt.Fprintln(w, "Responses: **all consistent**")
	} else {
		fmt.Fprintf(w, "Responses: **%d INCONSISTENT**\n", inconsistent)

		for _, r := range rows {
			if r.Inconsistent > 0 {
				fmt.Fprintf(w, "  - %s %s: %d requests\n", r.Mode, r.Value, r.Inconsistent)
			}
		}
	}

	fmt.Fprintln(w)

	// Table header.
	fmt.Fprintln(w, "| Mode | Value | Requests | Responses "+
		"| Windows | Sequences | Payload | Span |")
	fmt.Fprintln(w, "|------|-------|----------|-----------"+
		"|---------|-----------|---------|------|")

	for _, r := range rows {
		fmt.Fprintf(w, "| %s | %s | %d | %d | %d | %d | %s | %s |\n",
			r.Mode,
			r.Value,
			r.Requests,
			r.Responses,
			r.Windows,
			r.Sequences,
			formatBytes(r.PayloadBytes),
			formatMs(r.SpanMs),
		)
	}

	return nil
}

// GenerateJSON writes summary rows as JSON to w.
func GenerateJSON(w io.Writer, experiments []profile.Experiment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(Summarize(experiments))
}

// Render writes a styled terminal summary to w.
func Render(w io.Writer, experiments []profile.Experiment) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	fmt.Fprintln(w, headerStyle.Render("Capture Summary"))
	fmt.Fprintln(w, strings.Repeat("─", 40))

	for _, r := range Summarize(experiments) {
		status := okStyle.Render("consistent")
		if r.Inconsistent > 0 {
			status = badStyle.Render(fmt.Sprintf("%d inconsistent", r.Inconsistent))
		}

		fmt.Fprintf(w, "%s %s\n",
			labelStyle.Render(r.Mode+":"),
			valueStyle.Render(r.Value),
		)
		fmt.Fprintf(w, "  %s %s  %s %s  %s %s\n",
			labelStyle.Render("requests"), valueStyle.Render(strconv.Itoa(r.Requests)),
			labelStyle.Render("responses"), valueStyle.Render(strconv.Itoa(r.Responses)),
			labelStyle.Render("payload"), valueStyle.Render(formatBytes(r.PayloadBytes)),
		)
		fmt.Fprintf(w, "  %s\n", status)
	}

	fmt.Fprintln(w, strings.Repeat("─", 40))
}

func countInconsistent(rows []Row) int {
	n := 0
	for _, r := range rows {
		n += r.Inconsistent
	}

	return n
}

func payloadBytes(maps []profile.Fields) uint64 {
	var n uint64
	for _, fields := range maps {
		for _, f := range fields {
			n += uint64(len(f.Buf))
		}
	}

	return n
}

func formatLevel(m profile.LoadMode) string {
	if m.Concurrency != 0 {
		return strconv.FormatUint(m.Concurrency, 10)
	}

	return strconv.FormatFloat(m.RequestRate, 'f', -1, 64)
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
