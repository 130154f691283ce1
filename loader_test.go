package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestFinderFind(t *testing.T) {
	first := writeTree(t, map[string]string{
		"both/__init__.py": "",
		"both.py":          "",
		"pkg/sub.py":       "",
	})
	second := writeTree(t, map[string]string{
		"tests.py":   "",
		"pkg/sub.py": "",
	})
	f := Finder{SearchPath: []string{first, second}}

	tests := []struct {
		name string
		want string
	}{
		{"both", filepath.Join(first, "both", "__init__.py")},
		{"tests", filepath.Join(second, "tests.py")},
		{"pkg.sub", filepath.Join(first, "pkg", "sub.py")},
	}
	for _, tt := range tests {
		got, err := f.Find(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got)
	}

	for _, name := range []string{"missing", "1bad", "pkg..sub", "class"} {
		_, err := f.Find(name)
		assert.ErrorIs(t, err, ErrModuleNotFound, name)
	}
}

func TestFinderDirectoryIsNotAModule(t *testing.T) {
	dir := writeTree(t, map[string]string{"tests.py/keep": ""})
	_, err := Finder{SearchPath: []string{dir}}.Find("tests")
	require.ErrorIs(t, err, ErrModuleNotFound)
	assert.Equal(t, `no module named "tests"`, err.Error())
}

func TestLoaderImportCaches(t *testing.T) {
	dir := writeTree(t, map[string]string{"tests.py": "X = 1\n"})
	l := NewLoader(Finder{SearchPath: []string{dir}}, zap.NewNop())

	m1, err := l.Import("tests")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "tests.py")))
	m2, err := l.Import("tests")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, "tests", m1.Name)
	assert.Equal(t, filepath.Join(dir, "tests.py"), m1.File)
}

func TestLoaderImportSyntaxError(t *testing.T) {
	dir := writeTree(t, map[string]string{"tests.py": "X = [1,\n"})
	_, err := NewLoader(Finder{SearchPath: []string{dir}}, nil).Import("tests")

	require.ErrorIs(t, err, ErrModuleNotFound)
	var me *ModuleError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, filepath.Join(dir, "tests.py"), me.Path)
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Line)
	assert.Equal(t, "ModuleNotFound", errorClass(err))
}

func TestLoaderFromImports(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"tests.py": `from vectors import VALID, RENAMED as ALIAS
from first import *
from second import *
from absent import NOWHERE
from vectors import GONE
from cycle_a import LOOP
`,
		"vectors.py": "VALID = ['a']\nRENAMED = ('b',)\n",
		"first.py":   "SHADOWED = 1\nONLY_FIRST = 2\n_HIDDEN = 3\n",
		"second.py":  "SHADOWED = 10\nfrom vectors import VALID as CHAINED\n",
		"cycle_a.py": "from cycle_b import LOOP\n",
		"cycle_b.py": "from cycle_a import LOOP\n",
	})
	l := NewLoader(Finder{SearchPath: []string{dir}}, nil)
	m, err := l.Import("tests")
	require.NoError(t, err)

	want := map[string]Value{
		"VALID":      ListValue(StrValue("a")),
		"ALIAS":      TupleValue(StrValue("b")),
		"SHADOWED":   IntValue(10),
		"ONLY_FIRST": IntValue(2),
		"CHAINED":    ListValue(StrValue("a")),
	}
	for name, w := range want {
		got, err := m.Lookup(name)
		require.NoError(t, err, name)
		assert.True(t, w.Equal(got), "%s = %s, want %s", name, got, w)
	}

	_, err = m.Lookup("_HIDDEN")
	assert.ErrorIs(t, err, ErrAttributeMissing)

	_, err = m.Lookup("NOWHERE")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), `no module named "absent"`)

	_, err = m.Lookup("GONE")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), `cannot import name "GONE" from "vectors"`)

	_, err = m.Lookup("LOOP")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), "circular import")
}

func TestLoaderStarImportOrder(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"tests.py": `EARLY = 1
from stars import *
LATE = 2
COPY = EARLY
from listed import *
from broken import *
from dynamic import *
try:
    from maybe import *
except ImportError:
    pass
`,
		"stars.py":   "EARLY = 10\nLATE = 20\n",
		"listed.py":  "__all__ = [\"_SHOWN\", \"LISTED\"]\n_SHOWN = 1\nLISTED = 2\nUNLISTED = 3\n",
		"broken.py":  "__all__ = (\"MISSING\",)\n",
		"dynamic.py": "__all__ = [n for n in [\"DYN\"]]\nDYN = 1\n",
		"maybe.py":   "PERHAPS = 1\n",
	})
	m, err := NewLoader(Finder{SearchPath: []string{dir}}, nil).Import("tests")
	require.NoError(t, err)

	want := map[string]Value{
		"EARLY":  IntValue(10),
		"LATE":   IntValue(2),
		"COPY":   IntValue(10),
		"_SHOWN": IntValue(1),
		"LISTED": IntValue(2),
	}
	for name, w := range want {
		got, err := m.Lookup(name)
		require.NoError(t, err, name)
		assert.True(t, w.Equal(got), "%s = %s, want %s", name, got, w)
	}

	_, err = m.Lookup("UNLISTED")
	assert.ErrorIs(t, err, ErrAttributeMissing)

	_, err = m.Lookup("MISSING")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), `__all__ of "broken" lists "MISSING"`)

	for name, module := range map[string]string{"DYN": "dynamic", "PERHAPS": "maybe"} {
		got, err := m.Lookup(name)
		require.NoError(t, err, name)
		require.Equal(t, KindOpaque, got.Kind, "%s = %s", name, got)
		assert.Equal(t, name+" may be bound by from "+module+" import *", got.Note)
	}
}

func TestLoaderStarImportInClassBody(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"tests.py": "X = 1\nclass C:\n    from stars import *\n",
		"stars.py": "X = 2\n",
	})
	m, err := NewLoader(Finder{SearchPath: []string{dir}}, nil).Import("tests")
	require.NoError(t, err)
	got, err := m.Lookup("X")
	require.NoError(t, err)
	assert.True(t, IntValue(1).Equal(got), "X = %s", got)
}
