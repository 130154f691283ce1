package main

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound is matched by every failure to locate, read or parse
	// a reference module.
	ErrModuleNotFound = errors.New("module not found")

	// ErrAttributeMissing is matched when a loaded module does not define a
	// requested name.
	ErrAttributeMissing = errors.New("attribute missing")

	// ErrSerialization is matched when a value has no JSON representation.
	ErrSerialization = errors.New("value is not JSON serializable")
)

// ModuleError reports a module that could not be imported.
//
// The underlying cause (a *SyntaxError, an fs error, ...) is available via
// errors.Unwrap.
type ModuleError struct {
	Name  string // dotted module name
	Path  string // file that was tried, empty when nothing was found
	cause error
}

func (e *ModuleError) Error() string {
	switch {
	case e.cause == nil:
		return fmt.Sprintf("no module named %q", e.Name)
	case e.Path == "":
		return fmt.Sprintf("import %s: %v", e.Name, e.cause)
	default:
		return fmt.Sprintf("import %s (%s): %v", e.Name, e.Path, e.cause)
	}
}

func (e *ModuleError) Unwrap() error { return e.cause }

func (e *ModuleError) Is(target error) bool { return target == ErrModuleNotFound }

// SyntaxError locates a tokenizing or parsing failure inside a module file.
type SyntaxError struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

// AttributeError reports a name that the module does not define.
type AttributeError struct {
	Module string
	Name   string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("module %q has no attribute %q", e.Module, e.Name)
}

func (e *AttributeError) Is(target error) bool { return target == ErrAttributeMissing }

// SerializationError names the vector and the position inside it that could
// not be encoded, for example INVALID_ADDRESS_ENC[2][0].
type SerializationError struct {
	Path   string
	Type   string // type name of the offending value
	Reason string
}

func (e *SerializationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: value of type %s is not JSON serializable", e.Path, e.Type)
}

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// errorClass names the failure category for diagnostics.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrModuleNotFound):
		return "ModuleNotFound"
	case errors.Is(err, ErrAttributeMissing):
		return "AttributeMissing"
	case errors.Is(err, ErrSerialization):
		return "SerializationFailure"
	default:
		return "Internal"
	}
}
