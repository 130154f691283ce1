package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapNamespace serves lookups from a map.
type mapNamespace map[string]Value

func (ns mapNamespace) Lookup(name string) (Value, error) {
	v, ok := ns[name]
	if !ok {
		return Value{}, &AttributeError{Module: "fake", Name: name}
	}
	return v, nil
}

func TestExtractOrder(t *testing.T) {
	ns := mapNamespace{
		"B":     ListValue(StrValue("b")),
		"A":     ListValue(),
		"OTHER": IntValue(1),
	}
	res, err := Extract(ns, []string{"B", "A"}, nil)
	require.NoError(t, err)
	require.Len(t, res.Vectors, 2)
	assert.Equal(t, "B", res.Vectors[0].Name)
	assert.Equal(t, "A", res.Vectors[1].Name)
	assert.True(t, ListValue(StrValue("b")).Equal(res.Vectors[0].Value))
}

func TestExtractMissingName(t *testing.T) {
	ns := mapNamespace{"A": ListValue()}
	res, err := Extract(ns, []string{"A", "MISSING", "A"}, nil)
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrAttributeMissing)
	assert.Equal(t, `module "fake" has no attribute "MISSING"`, err.Error())
	assert.Equal(t, "AttributeMissing", errorClass(err))
}

func TestExtractSource(t *testing.T) {
	src := []byte(`VALID_BECH32 = ["bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"]
VALID_BECH32M = []
INVALID_BECH32 = []
INVALID_BECH32M = []
VALID_ADDRESS = []
INVALID_ADDRESS = []
INVALID_ADDRESS_ENC = []
`)
	doc, err := extractSource(MustLoadManifest(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"VALID_BECH32": ["bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"], "VALID_BECH32M": [], `+
		`"INVALID_BECH32": [], "INVALID_BECH32M": [], "VALID_ADDRESS": [], "INVALID_ADDRESS": [], `+
		`"INVALID_ADDRESS_ENC": []}`+"\n", string(doc))
}

func TestExtractSourceErrors(t *testing.T) {
	m := MustLoadManifest()

	_, err := extractSource(m, []byte("VALID_BECH32 = [\n"), nil)
	require.ErrorIs(t, err, ErrModuleNotFound)
	var se *SyntaxError
	assert.True(t, errors.As(err, &se))

	_, err = extractSource(m, []byte("VALID_BECH32 = []\n"), nil)
	assert.ErrorIs(t, err, ErrAttributeMissing)
	assert.Contains(t, err.Error(), "VALID_BECH32M")
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ModuleError{Name: "tests"}, "ModuleNotFound"},
		{&ModuleError{Name: "tests", cause: &AttributeError{Module: "v", Name: "X"}}, "ModuleNotFound"},
		{&AttributeError{Module: "tests", Name: "X"}, "AttributeMissing"},
		{&SerializationError{Path: "X[0]", Type: "set"}, "SerializationFailure"},
		{errors.New("boom"), "Internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorClass(tt.err), tt.err.Error())
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ModuleError{Name: "tests"}, `no module named "tests"`},
		{&ModuleError{Name: "tests", cause: errors.New("circular import")}, "import tests: circular import"},
		{&ModuleError{Name: "tests", Path: "/r/tests.py", cause: &SyntaxError{File: "/r/tests.py", Line: 3, Col: 7, Msg: "invalid syntax"}},
			"import tests (/r/tests.py): /r/tests.py:3:7: invalid syntax"},
		{&SerializationError{Path: "INVALID_ADDRESS_ENC[2][0]", Type: "bytes"},
			"INVALID_ADDRESS_ENC[2][0]: value of type bytes is not JSON serializable"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}
