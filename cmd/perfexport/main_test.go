package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(logger, new(slog.LevelVar), &stdout)
	root.SetArgs(args)
	root.SetErr(io.Discard)

	err := root.Execute()

	return stdout.String(), err
}

func TestSynthExportSummary(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snapshot.json.sz")
	output := filepath.Join(dir, "profile.json")
	metrics := filepath.Join(dir, "metrics.prom")

	_, err := execute(t, "synth",
		"--output", snapshot,
		"--concurrency", "1,2",
		"--request-rates", "5",
		"--requests", "6",
		"--seed", "11",
		"--sequenced",
	)
	require.NoError(t, err)

	_, err = execute(t, "export", snapshot,
		"--output", output,
		"--version-string", "1.2.3",
		"--service-kind", "openai",
		"--endpoint", "v1/completions",
		"--indent",
		"--metrics-textfile", metrics,
	)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var doc struct {
		Experiments []struct {
			Experiment struct {
				Mode  string  `json:"mode"`
				Value float64 `json:"value"`
			} `json:"experiment"`
			Requests []json.RawMessage `json:"requests"`
		} `json:"experiments"`
		Version     string `json:"version"`
		ServiceKind string `json:"service_kind"`
		Endpoint    string `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "1.2.3", doc.Version)
	assert.Equal(t, "openai", doc.ServiceKind)
	assert.Equal(t, "v1/completions", doc.Endpoint)
	require.Len(t, doc.Experiments, 3)
	assert.Equal(t, "concurrency", doc.Experiments[0].Experiment.Mode)
	assert.Equal(t, "request_rate", doc.Experiments[2].Experiment.Mode)
	assert.Equal(t, 5.0, doc.Experiments[2].Experiment.Value)
	assert.Len(t, doc.Experiments[1].Requests, 6)
	assert.Contains(t, string(data), "\n  \"version\"")

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "perfexport_requests_exported_total 18")

	out, err := execute(t, "summary", snapshot, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "all consistent")
	assert.Contains(t, out, "| request_rate | 5 | 6 |")
}

func TestSynthStdoutDeterministic(t *testing.T) {
	args := []string{"synth", "--concurrency", "2", "--requests", "3", "--seed", "5"}

	first, err := execute(t, args...)
	require.NoError(t, err)
	second, err := execute(t, args...)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, `{"experiments":`))
	assert.Equal(t, first, second)
}

func TestExportDefaultOutputName(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snapshot.json")

	_, err := execute(t, "synth", "--output", snapshot, "--concurrency", "1", "--requests", "2", "--seed", "1")
	require.NoError(t, err)

	t.Chdir(dir)

	_, err = execute(t, "export", snapshot)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "profile_export-*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExportErrors(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snapshot.json")

	_, err := execute(t, "synth", "--output", snapshot, "--concurrency", "1", "--requests", "1", "--seed", "1")
	require.NoError(t, err)

	_, err = execute(t, "export", snapshot, "--service-kind", "kserve")
	assert.Error(t, err)

	_, err = execute(t, "export", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = execute(t, "export", snapshot, "--output", filepath.Join(dir, "no", "such", "dir.json"))
	assert.Error(t, err)

	_, err = execute(t, "summary", snapshot, "--format", "yaml")
	assert.Error(t, err)
}

func TestSynthRejectsNegativeCounts(t *testing.T) {
	for _, flag := range []string{"--requests", "--max-responses", "--prompt-words", "--windows"} {
		t.Run(flag, func(t *testing.T) {
			out, err := execute(t, "synth", "--concurrency", "1", flag, "-1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "must not be negative")
			assert.Empty(t, out)
		})
	}
}
