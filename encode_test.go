package main

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendJSON(t *testing.T) {
	r := &Result{Vectors: []Vector{
		{"VALID_BECH32", ListValue(StrValue("A12UEL5L"), StrValue("a12uel5l"))},
		{"EMPTY", ListValue()},
		{"INVALID_ADDRESS_ENC", ListValue(
			TupleValue(StrValue("BC"), IntValue(0), IntValue(20)),
			TupleValue(StrValue("bc"), IntValue(17), IntValue(32)))},
		{"MIXED", TupleValue(NoneValue(), BoolValue(true), BoolValue(false), FloatValue(0.5), IntValue(-3))},
		{"NESTED", mustDict(t, DictItem{StrValue("k"), ListValue(mustDict(t))})},
	}}
	got, err := r.AppendJSON([]byte("prefix:"))
	require.NoError(t, err)

	want := `prefix:{"VALID_BECH32": ["A12UEL5L", "a12uel5l"], "EMPTY": [], ` +
		`"INVALID_ADDRESS_ENC": [["BC", 0, 20], ["bc", 17, 32]], ` +
		`"MIXED": [null, true, false, 0.5, -3], "NESTED": {"k": [{}]}}`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("AppendJSON mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{"\x7f", `"\u007f"`},
		{"\u0080", `"\u0080"`},
		{"é", `"\u00e9"`},
		{"😀", `"\ud83d\ude00"`},
		{"\x00\x1f", `"\u0000\u001f"`},
		{`"\/`, `"\"\\/"`},
		{"\t\n\r\b\f", `"\t\n\r\b\f"`},
		{"\u2028", `"\u2028"`},
		{string(appendSurrogate(nil, 0xD800)), `"\ud800"`},
		{"a" + string(appendSurrogate(nil, 0xDE00)) + "b", `"a\ude00b"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(appendString(nil, tt.in)), "%q", tt.in)
	}
}

func TestPyFloatRepr(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{1, "1.0"},
		{0.1, "0.1"},
		{-2.5, "-2.5"},
		{100, "100.0"},
		{123.456, "123.456"},
		{1e15, "1000000000000000.0"},
		{9999999999999998, "9999999999999998.0"},
		{1e16, "1e+16"},
		{123456789012345680, "1.2345678901234568e+17"},
		{1.5e300, "1.5e+300"},
		{math.MaxFloat64, "1.7976931348623157e+308"},
		{0.0001, "0.0001"},
		{0.00001, "1e-05"},
		{2.5e-7, "2.5e-07"},
		{5e-324, "5e-324"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pyFloatRepr(tt.in))
	}
}

func TestDictKeys(t *testing.T) {
	d := mustDict(t,
		DictItem{IntValue(2), StrValue("int")},
		DictItem{FloatValue(1.5), StrValue("float")},
		DictItem{NoneValue(), StrValue("none")},
		DictItem{BoolValue(false), StrValue("bool")},
	)
	got, err := appendValue(nil, d, "V")
	require.NoError(t, err)
	assert.Equal(t, `{"2": "int", "1.5": "float", "null": "none", "false": "bool"}`, string(got))
}

func TestAppendValueErrors(t *testing.T) {
	tests := []struct {
		name     string
		v        Value
		path     string
		typeName string
		reason   string
	}{
		{"nan", ListValue(IntValue(1), FloatValue(math.NaN())), "V[1]", "float", "out of range float value NaN"},
		{"inf", FloatValue(math.Inf(-1)), "V", "float", "-Infinity"},
		{"bytes", ListValue(TupleValue(BytesValue("x"))), "V[0][0]", "bytes", ""},
		{"set", SetValue(IntValue(1)), "V", "set", ""},
		{"complex", Value{Kind: KindComplex, Str: "1j"}, "V", "complex", ""},
		{"opaque", ListValue(OpaqueValue("function", "def helper")), "V[0]", "function", "(def helper)"},
		{"tuple key", mustDict(t, DictItem{TupleValue(IntValue(1)), IntValue(2)}), "V", "tuple", "keys must be str, int, float, bool or None"},
		{"nested dict", mustDict(t, DictItem{StrValue("k"), SetValue()}), `V["k"]`, "set", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := appendValue(nil, tt.v, "V")
			require.ErrorIs(t, err, ErrSerialization)
			var se *SerializationError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.path, se.Path)
			assert.Equal(t, tt.typeName, se.Type)
			assert.Contains(t, se.Error(), tt.reason)
			assert.Equal(t, "SerializationFailure", errorClass(err))
		})
	}
}

func TestEncodeDocument(t *testing.T) {
	r := &Result{Vectors: []Vector{
		{"A", ListValue(StrValue("xé"), FloatValue(1e16), IntValue(7))},
		// Keys that coerce to the same string are both written.
		{"B", mustDict(t, DictItem{IntValue(1), StrValue("a")}, DictItem{StrValue("1"), StrValue("b")})},
	}}
	doc, err := encodeDocument(r)
	require.NoError(t, err)
	assert.Equal(t, `{"A": ["x\u00e9", 1e+16, 7], "B": {"1": "a", "1": "b"}}`+"\n", string(doc))

	_, err = encodeDocument(&Result{Vectors: []Vector{{"A", SetValue()}}})
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestEncodeDocumentSurrogates(t *testing.T) {
	lone := StrValue(string(appendSurrogate(nil, 0xD800)))
	pair := StrValue(string(appendSurrogate(appendSurrogate(nil, 0xD83D), 0xDE00)))
	doc, err := encodeDocument(&Result{Vectors: []Vector{{"A", ListValue(lone, pair, StrValue("😀"))}}})
	require.NoError(t, err)
	assert.Equal(t, `{"A": ["\ud800", "\ud83d\ude00", "\ud83d\ude00"]}`+"\n", string(doc))
}

func TestVerifyDocument(t *testing.T) {
	r := &Result{Vectors: []Vector{
		{"A", ListValue(IntValue(1), StrValue("s"))},
		{"B", ListValue()},
	}}
	tests := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"match", `{"A": [1, "s"], "B": []}`, true},
		{"compact", `{"A":[1,"s"],"B":[]}`, true},
		{"value", `{"A": [2, "s"], "B": []}`, false},
		{"number as float", `{"A": [1.0, "s"], "B": []}`, false},
		{"order", `{"B": [], "A": [1, "s"]}`, false},
		{"missing key", `{"A": [1, "s"]}`, false},
		{"extra key", `{"A": [1, "s"], "B": [], "C": []}`, false},
		{"trailing", `{"A": [1, "s"], "B": []} {}`, false},
		{"not an object", `[1]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyDocument([]byte(tt.doc), r)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
