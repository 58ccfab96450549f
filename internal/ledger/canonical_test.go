package ledger

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	code := "PAT-001"

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "sorted keys", input: map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": true, "y": nil}}, want: `{"a":2,"b":1,"c":{"y":null,"z":true}}`},
		{name: "compact arrays", input: []any{"x", 1, false}, want: `["x",1,false]`},
		{name: "string slice", input: map[string]any{"reasons": []string{"LOCATION", "TAG"}}, want: `{"reasons":["LOCATION","TAG"]}`},
		{name: "floats shortest form", input: []any{1.5, 100.0, 0.1, 1e21}, want: `[1.5,100,0.1,1e+21]`},
		{name: "non ascii escaped", input: "Sala de reunião", want: `"Sala de reunião"`},
		{name: "astral plane as surrogates", input: "📦", want: `"📦"`},
		{name: "control characters", input: "a\"b\\c\nd\x01", want: `"a\"b\\c\nd\u0001"`},
		{name: "string pointer", input: map[string]any{"code": &code, "none": (*string)(nil)}, want: `{"code":"PAT-001","none":null}`},
		{name: "json number kept verbatim", input: json.Number("12.50"), want: `12.50`},
		{name: "payload type", input: Payload{"k": "v"}, want: `{"k":"v"}`},
		{name: "empty map", input: map[string]any{}, want: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalize_InsertionOrderIndependent(t *testing.T) {
	first := map[string]any{}
	second := map[string]any{}

	keys := []string{"audit_id", "item_id", "result", "collector_id", "scanned_code", "reasons"}
	for i, k := range keys {
		first[k] = i
	}
	for i := len(keys) - 1; i >= 0; i-- {
		second[keys[i]] = i
	}

	a, err := Canonicalize(first)
	require.NoError(t, err)
	b, err := Canonicalize(second)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, Hash(a), Hash(b))
}

func TestCanonicalize_StableAcrossStorageRoundTrip(t *testing.T) {
	payload := Payload{
		"value":   1234.5,
		"count":   int64(7),
		"nested":  map[string]any{"list": []any{1.0, "two", nil}},
		"unicode": "ção",
	}

	normalized, err := normalizeMap(payload)
	require.NoError(t, err)
	before, err := Canonicalize(normalized)
	require.NoError(t, err)

	stored, err := json.Marshal(normalized)
	require.NoError(t, err)

	var decoded map[string]any
	dec := json.NewDecoder(bytes.NewReader(stored))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&decoded))

	after, err := Canonicalize(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestCanonicalize_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{name: "NaN", input: math.NaN()},
		{name: "infinity", input: math.Inf(1)},
		{name: "struct", input: struct{ A int }{A: 1}},
		{name: "nested channel", input: map[string]any{"c": make(chan int)}},
		{name: "bad number literal", input: json.Number("01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.input)
			assert.ErrorIs(t, err, ErrCanonicalization)
		})
	}
}

func TestHash_Stable(t *testing.T) {
	assert.Equal(t,
		"44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a",
		Hash([]byte(`{}`)))
}
