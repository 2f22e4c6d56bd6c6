package profile

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectOrderAndReplace(t *testing.T) {
	o := NewObject()
	o.Set("z", 1)
	o.Set("a", 2)
	o.Set("m", 3)
	o.Set("a", "replaced")

	assert.Equal(t, []string{"z", "a", "m"}, o.Keys())
	assert.Equal(t, 3, o.Len())

	out, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"replaced","m":3}`, string(out))
}

func TestObjectDoesNotEscapeHTML(t *testing.T) {
	o := NewObject()
	o.Set("text", "<b>a & b</b>")

	out, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"text":"<b>a & b</b>"}`, string(out))
}

func TestServiceKindTokens(t *testing.T) {
	tests := []struct {
		kind ServiceKind
		want string
	}{
		{Triton, "triton"},
		{TensorFlowServing, "tfserving"},
		{TorchServe, "torchserve"},
		{TritonCAPI, "triton_c_api"},
		{OpenAI, "openai"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			doc := NewDocument()
			require.NoError(t, doc.SetServiceKind(tt.kind))

			got, ok := doc.Get("service_kind")
			require.True(t, ok)
			assert.Equal(t, tt.want, got)

			parsed, err := ParseServiceKind(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, parsed)
		})
	}
}

func TestServiceKindInvalid(t *testing.T) {
	doc := NewDocument()

	for _, k := range []ServiceKind{-1, 5, 100} {
		err := doc.SetServiceKind(k)
		assert.ErrorIs(t, err, ErrInvalidServiceKind)
	}

	_, ok := doc.Get("service_kind")
	assert.False(t, ok)

	_, err := ParseServiceKind("vllm")
	assert.ErrorIs(t, err, ErrInvalidServiceKind)
}

func TestParseServiceKindBackendNames(t *testing.T) {
	tests := map[string]ServiceKind{
		"TRITON":             Triton,
		"TENSORFLOW_SERVING": TensorFlowServing,
		"TorchServe":         TorchServe,
		" TRITON_C_API ":     TritonCAPI,
		"OPENAI":             OpenAI,
	}

	for in, want := range tests {
		got, err := ParseServiceKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestEndpoint(t *testing.T) {
	for _, endpoint := range []string{"v1/chat/completions", "v1/completions", ""} {
		doc := NewDocument()
		doc.SetEndpoint(endpoint)

		got, ok := doc.Get("endpoint")
		require.True(t, ok)
		assert.Equal(t, endpoint, got)
	}
}

func TestSettersReplaceValues(t *testing.T) {
	doc := NewDocument()

	doc.SetVersion("1.0.0")
	require.NoError(t, doc.SetServiceKind(Triton))
	doc.SetEndpoint("v1/completions")

	doc.SetVersion("2.0.0")
	require.NoError(t, doc.SetServiceKind(OpenAI))
	doc.SetEndpoint("v1/chat/completions")

	assert.Equal(t, []string{"version", "service_kind", "endpoint"}, doc.Keys())

	data, err := Encode(doc)
	require.NoError(t, err)

	out := string(data)
	assert.Equal(t, 1, strings.Count(out, `"version"`))
	assert.Equal(t, 1, strings.Count(out, `"service_kind"`))
	assert.Equal(t, 1, strings.Count(out, `"endpoint"`))
	assert.JSONEq(t,
		`{"version":"2.0.0","service_kind":"openai","endpoint":"v1/chat/completions"}`,
		out)
}

func TestAddExperimentAppends(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.AddExperiment(Experiment{Mode: LoadMode{Concurrency: 1}}))
	require.NoError(t, doc.AddExperiment(Experiment{Mode: LoadMode{RequestRate: 2.5}}))

	assert.Equal(t, 2, doc.Experiments())
	assert.Equal(t, []string{"experiments"}, doc.Keys())

	data, err := Encode(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"experiments":[
		{"experiment":{"mode":"concurrency","value":1},"requests":[],"window_boundaries":[]},
		{"experiment":{"mode":"request_rate","value":2.5},"requests":[],"window_boundaries":[]}
	]}`, string(data))
}

func TestReset(t *testing.T) {
	doc := NewDocument()
	doc.SetVersion("1.0.0")
	require.NoError(t, doc.AddExperiment(Experiment{}))

	doc.Reset()

	assert.Empty(t, doc.Keys())
	assert.Equal(t, 0, doc.Experiments())

	data, err := Encode(doc)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestEncodeIndent(t *testing.T) {
	doc := NewDocument()
	doc.SetVersion("1.2.3")

	data, err := Encode(doc, WithIndent("", "  "))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"version\": \"1.2.3\"\n}\n", string(data))
}

func TestZeroValues(t *testing.T) {
	var o Object
	assert.Equal(t, 0, o.Len())
	_, ok := o.Get("missing")
	assert.False(t, ok)

	o.Set("k", 1)
	out, err := json.Marshal(&o)
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, string(out))

	var d Document
	out, err = d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))

	d.SetVersion("x")
	require.NoError(t, d.SetServiceKind(OpenAI))
	require.NoError(t, d.AddExperiment(Experiment{Mode: LoadMode{Concurrency: 1}}))

	out, err = d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"version":"x","service_kind":"openai","experiments":[{"experiment":{"mode":"concurrency","value":1},"requests":[],"window_boundaries":[]}]}`, string(out))
}
