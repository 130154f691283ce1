package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Finder locates module source files. SearchPath is consulted in order, the
// way an interpreter walks its import path; there is no process-wide path.
type Finder struct {
	SearchPath []string
}

// Find returns the source file of the dotted module name. A package
// directory (<dir>/<name>/__init__.py) wins over a module file
// (<dir>/<name>.py) in the same search path entry.
func (f Finder) Find(name string) (string, error) {
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if !isIdentifier(p) {
			return "", &ModuleError{Name: name, cause: fmt.Errorf("invalid module name %q", name)}
		}
	}
	for _, dir := range f.SearchPath {
		base := filepath.Join(append([]string{dir}, parts...)...)
		for _, candidate := range []string{filepath.Join(base, "__init__.py"), base + ".py"} {
			if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
				return candidate, nil
			}
		}
	}
	return "", &ModuleError{Name: name}
}

// Loader imports modules found by its Finder and caches them, so each module
// is read and evaluated once.
type Loader struct {
	Finder Finder

	log     *zap.Logger
	modules map[string]*Module
	loading map[string]bool
}

func NewLoader(f Finder, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		Finder:  f,
		log:     log,
		modules: make(map[string]*Module),
		loading: make(map[string]bool),
	}
}

// Import returns the named module. Every failure matches ErrModuleNotFound.
func (l *Loader) Import(name string) (*Module, error) {
	if m, ok := l.modules[name]; ok {
		return m, nil
	}
	if l.loading[name] {
		return nil, &ModuleError{Name: name, cause: errors.New("circular import")}
	}
	l.loading[name] = true
	defer delete(l.loading, name)

	path, err := l.Finder.Find(name)
	if err != nil {
		l.log.Debug("module not found", zap.String("module", name), zap.Strings("search_path", l.Finder.SearchPath))
		return nil, err
	}
	src, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &ModuleError{Name: name, Path: path, cause: err}
	}
	m, err := parseModule(name, path, src, l)
	if err != nil {
		return nil, &ModuleError{Name: name, Path: path, cause: err}
	}
	l.modules[name] = m
	l.log.Debug("imported module",
		zap.String("module", name),
		zap.String("path", path),
		zap.Int("names", len(m.Names())),
	)
	return m, nil
}
