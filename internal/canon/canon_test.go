package canon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"byte", uint8(0x41), "65"},
		{"uint32", uint32(240), "240"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
		{"mixed array", []any{1, "x", false}, `[1,"x",false]`},
		{"string map", map[string]string{"b": "2", "a": "1"}, `{"a":"1","b":"2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
		"beta":  []map[string]any{{"y": 1, "x": 2}},
	}

	out, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":[{"x":2,"y":1}],"zebra":1}`, string(out))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as 0xD800 0xDC00 in UTF-16, which sorts before U+E000,
	// while its UTF-8 encoding sorts after.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	out, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(out))
}

func TestMarshalEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"quote", `say "hi"`, `"say \"hi\""`},
		{"backslash", `a\b`, `"a\\b"`},
		{"newline and tab", "a\nb\tc", `"a\nb\tc"`},
		{"control", "\x00\x1f", `"\u0000\u001f"`},
		{"html untouched", "<a href='x'>&</a>", `"<a href='x'>&</a>"`},
		{"line separator untouched", "a\u2028b", "\"a\u2028b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))

			var back string
			require.NoError(t, json.Unmarshal(out, &back), "output must be valid JSON")
		})
	}
}

func TestMarshalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	decomposed := "cafe\u0301"
	out, err := Marshal(map[string]any{decomposed: decomposed})
	require.NoError(t, err)
	assert.Equal(t, "{\"caf\u00e9\":\"caf\u00e9\"}", string(out))
}

func TestMarshalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"float64", 1.5},
		{"float32", float32(2)},
		{"nested float", map[string]any{"a": []any{1, 0.5}}},
		{"nil map", map[string]any(nil)},
		{"struct", struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestMarshalDeterministic(t *testing.T) {
	obj := map[string]any{"c": 3, "a": 1, "b": []any{"x", map[string]any{"z": 1, "y": 2}}}
	first, err := Marshal(obj)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Marshal(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]int{"b": 1, "a": 2, "B": 3})
	assert.Equal(t, []string{"B", "a", "b"}, keys)
}
