package main

import (
	"go.uber.org/zap"
)

// Namespace is the source of vector collections: anything that can resolve
// a name to a value. *Module is the production implementation.
type Namespace interface {
	Lookup(name string) (Value, error)
}

// Vector is one named collection taken from the reference module.
type Vector struct {
	Name  string
	Value Value
}

// Result holds one Vector per requested name, in request order.
type Result struct {
	Vectors []Vector
}

// Extract looks up every name in ns. The first failure aborts the
// extraction, so a Result is either complete or absent.
func Extract(ns Namespace, names []string, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res := &Result{Vectors: make([]Vector, 0, len(names))}
	for _, name := range names {
		v, err := ns.Lookup(name)
		if err != nil {
			return nil, err
		}
		log.Debug("resolved vector",
			zap.String("name", name),
			zap.String("type", v.TypeName()),
			zap.Int("len", v.Len()),
		)
		res.Vectors = append(res.Vectors, Vector{Name: name, Value: v})
	}
	return res, nil
}

// extractSource runs an extraction against module source held in memory.
func extractSource(m Manifest, src []byte, log *zap.Logger) ([]byte, error) {
	mod, err := ParseModule(m.Reference.Module, "<source>", src)
	if err != nil {
		return nil, &ModuleError{Name: m.Reference.Module, cause: err}
	}
	res, err := Extract(mod, m.Vectors, log)
	if err != nil {
		return nil, err
	}
	return encodeDocument(res)
}
