package main

import (
	"fmt"
	"slices"
)

type scopeKind int

const (
	scopeBranch scopeKind = iota // top-level code that may or may not run
	scopeClass                   // a class body, which runs with its own namespace
	scopeDef                     // a function body, which runs when called
)

// scope is code other than straight-line top-level statements. Such code is
// not evaluated; the module only records which of its names the code may
// change.
type scope struct {
	kind    scopeKind
	globals map[string]bool
	touched map[string]bool // scopeDef and scopeClass: names the code may change when called, true if it may rebind them
}

// branch returns the scope for the body of an if, for, while, try or with
// statement.
func branch(sc *scope) *scope {
	if sc == nil {
		return &scope{kind: scopeBranch}
	}
	return sc
}

var compoundKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "for": true, "while": true,
	"try": true, "except": true, "finally": true, "with": true,
	"def": true, "class": true, "async": true,
}

func isCompound(ts []token) bool {
	return len(ts) > 0 && ts[0].kind == tokName && compoundKeywords[ts[0].text]
}

// headerColon returns the index of the colon that ends a compound
// statement's header, or -1.
func headerColon(ts []token) int {
	depth, lambdas := 0, 0
	for i, t := range ts {
		switch {
		case t.is(tokName, "lambda") && depth == 0:
			lambdas++
		case t.kind != tokOp:
		case t.text == "(" || t.text == "[" || t.text == "{":
			depth++
		case t.text == ")" || t.text == "]" || t.text == "}":
			depth--
		case t.text == ":" && depth == 0:
			if lambdas > 0 {
				lambdas--
				continue
			}
			return i
		}
	}
	return -1
}

// indexName returns the index of the keyword kw at bracket depth zero, or -1.
func indexName(ts []token, kw string) int {
	depth := 0
	for i, t := range ts {
		switch {
		case t.is(tokOp, "(") || t.is(tokOp, "[") || t.is(tokOp, "{"):
			depth++
		case t.is(tokOp, ")") || t.is(tokOp, "]") || t.is(tokOp, "}"):
			depth--
		case depth == 0 && t.is(tokName, kw):
			return i
		}
	}
	return -1
}

// matching returns the index of the bracket closing the one at ts[i], or -1.
func matching(ts []token, i int) int {
	depth := 0
	for j := i; j < len(ts); j++ {
		switch {
		case ts[j].is(tokOp, "(") || ts[j].is(tokOp, "[") || ts[j].is(tokOp, "{"):
			depth++
		case ts[j].is(tokOp, ")") || ts[j].is(tokOp, "]") || ts[j].is(tokOp, "}"):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// enclosed reports whether ts is one parenthesized or bracketed group.
func enclosed(ts []token) bool {
	return len(ts) >= 2 && (ts[0].is(tokOp, "(") || ts[0].is(tokOp, "[")) && matching(ts, 0) == len(ts)-1
}

// Functions and methods that do not change their arguments or receiver.
var (
	pureBuiltins = map[string]bool{
		"abs": true, "all": true, "any": true, "ascii": true, "bin": true, "bool": true,
		"bytes": true, "callable": true, "chr": true, "dict": true, "divmod": true,
		"enumerate": true, "filter": true, "float": true, "format": true, "frozenset": true,
		"hash": true, "hex": true, "id": true, "int": true, "isinstance": true,
		"issubclass": true, "len": true, "list": true, "map": true, "max": true, "min": true,
		"oct": true, "ord": true, "print": true, "range": true, "repr": true,
		"reversed": true, "round": true, "set": true, "sorted": true, "str": true,
		"sum": true, "tuple": true, "type": true, "zip": true,
	}
	pureMethods = map[string]bool{
		"capitalize": true, "casefold": true, "copy": true, "count": true, "decode": true,
		"encode": true, "endswith": true, "find": true, "format": true, "fromhex": true,
		"get": true, "hex": true, "index": true, "isalnum": true, "isalpha": true,
		"isdigit": true, "islower": true, "isspace": true, "isupper": true, "items": true,
		"join": true, "keys": true, "lower": true, "lstrip": true, "replace": true,
		"rfind": true, "rsplit": true, "rstrip": true, "split": true, "splitlines": true,
		"startswith": true, "strip": true, "swapcase": true, "title": true, "upper": true,
		"values": true, "zfill": true,
	}
)

// effects records what running the expression ts may change: the receiver
// of any method call that is not known to be pure, every function the
// expression refers to, and, when it makes a call whose effect is unknown,
// every name it mentions.
func (m *Module) effects(sc *scope, ts []token, why string) {
	var refs []string
	impure := false
	for i, t := range ts {
		if t.is(tokOp, "(") && i > 0 && isCallee(ts[i-1]) && !m.pureCall(ts, i) {
			impure = true
		}
		if t.kind != tokName || keywords[t.text] || (i > 0 && ts[i-1].is(tokOp, ".")) {
			continue
		}
		if i+1 < len(ts) && ts[i+1].is(tokOp, "=") {
			continue // keyword argument
		}
		if i+1 < len(ts) && ts[i+1].is(tokOp, ":=") {
			m.rebind(sc, t.text, why)
			continue
		}
		refs = append(refs, t.text)
		if _, ok := m.defs[t.text]; ok || receivesCall(ts, i) {
			m.mark(sc, t.text, why)
		}
	}
	if impure {
		for _, name := range refs {
			m.mark(sc, name, why)
		}
	}
}

// isCallee reports whether a '(' after t is a call rather than a group.
func isCallee(t token) bool {
	switch t.kind {
	case tokName:
		return !keywords[t.text]
	case tokString:
		return true
	case tokOp:
		return t.text == ")" || t.text == "]" || t.text == "}"
	}
	return false
}

// pureCall reports whether the call opened at ts[i] is to a builtin or a
// method known not to change anything.
func (m *Module) pureCall(ts []token, i int) bool {
	fn := ts[i-1]
	if fn.kind != tokName {
		return false
	}
	if i >= 2 && ts[i-2].is(tokOp, ".") {
		return pureMethods[fn.text]
	}
	_, shadowed := m.names[fn.text]
	return pureBuiltins[fn.text] && !shadowed
}

// receivesCall reports whether the name at ts[i] is the receiver of a method
// call, possibly through subscripts and attributes, as in X[0].append(1).
func receivesCall(ts []token, i int) bool {
	for j := i + 1; j < len(ts); {
		switch {
		case ts[j].is(tokOp, "[") || ts[j].is(tokOp, "("):
			end := matching(ts, j)
			if end < 0 {
				return false
			}
			j = end + 1
		case ts[j].is(tokOp, ".") && j+1 < len(ts) && ts[j+1].kind == tokName:
			if j+2 < len(ts) && ts[j+2].is(tokOp, "(") && !pureMethods[ts[j+1].text] {
				return true
			}
			j += 2
		default:
			return false
		}
	}
	return false
}

// mark records that the object bound to name may be changed in place.
func (m *Module) mark(sc *scope, name, why string) {
	if sc != nil && sc.kind == scopeDef {
		if _, ok := sc.touched[name]; !ok {
			sc.touched[name] = false
		}
		return
	}
	m.changed(name, why, false, map[string]bool{})
}

// rebind records that name may be bound to a value that is not evaluated.
// Function and class bodies bind their own names unless they are declared
// global.
func (m *Module) rebind(sc *scope, name, why string) {
	switch {
	case sc == nil || sc.kind == scopeBranch:
		m.changed(name, why, true, map[string]bool{})
	case !sc.globals[name]:
	case sc.kind == scopeDef:
		sc.touched[name] = true
	default:
		m.changed(name, why, true, map[string]bool{})
	}
}

// changed makes name opaque after a change that is not evaluated. Changing a
// function or class by calling it changes what its body may change. A
// change in place also reaches every name sharing an object with name.
func (m *Module) changed(name, why string, rebound bool, seen map[string]bool) {
	if seen[name] {
		return
	}
	seen[name] = true
	if touched, ok := m.defs[name]; ok && !rebound {
		keys := make([]string, 0, len(touched))
		for k := range touched {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, n := range keys {
			m.changed(n, why, touched[n], seen)
		}
		return
	}
	v, bound := m.names[name]
	_, shadowed := m.starAfter(name)
	if !rebound && !shadowed {
		if !bound || v.Kind == KindOpaque || (v.Kind != KindImport && !v.mutable()) {
			return
		}
	}
	typeName := "object"
	if bound {
		typeName = typeNameOf(v)
	}
	if bound && !rebound {
		m.shareChanged(name, v, why)
	}
	verb := "changed"
	if rebound {
		verb = "rebound"
	}
	m.bind(name, OpaqueValue(typeName, fmt.Sprintf("%s may be %s by %s", name, verb, why)))
}

// shareChanged makes opaque every name other than name whose value shares
// a mutable object with v.
func (m *Module) shareChanged(name string, v Value, why string) {
	ids := make(map[*identity]bool)
	v.collect(ids)
	for _, other := range m.order {
		w, ok := m.names[other]
		if !ok || other == name || w.Kind == KindOpaque {
			continue
		}
		sameImport := v.Kind == KindImport && w.Kind == KindImport && *v.ref == *w.ref
		if sameImport || w.reaches(ids) {
			m.names[other] = OpaqueValue(typeNameOf(w),
				fmt.Sprintf("%s shares an object with %s, which may be changed by %s", other, name, why))
		}
	}
}

// define binds a function or class. What its body may change is kept for
// the places that call it. A nested function counts as called by its owner.
func (m *Module) define(sc *scope, name string, v Value, touched map[string]bool, why string) {
	if sc == nil || sc.kind == scopeBranch {
		m.bind(name, v)
		m.defs[name] = touched
		return
	}
	for n, rebound := range touched {
		sc.touched[n] = sc.touched[n] || rebound
	}
	m.rebind(sc, name, why)
}

// assignUnknown records an assignment of a value that is not evaluated:
// names in target may be rebound, and subscript or attribute targets
// change the object they index into.
func (m *Module) assignUnknown(sc *scope, target []token, why string) {
	if enclosed(target) {
		target = target[1 : len(target)-1]
	}
	for _, el := range splitTop(target, ",") {
		if len(el) > 0 && el[0].is(tokOp, "*") {
			el = el[1:]
		}
		switch {
		case len(el) == 0:
		case len(el) == 1 && el[0].kind == tokName:
			m.rebind(sc, el[0].text, why)
		case enclosed(el):
			m.assignUnknown(sc, el, why)
		default:
			m.effects(sc, el, why)
			if el[0].kind == tokName {
				m.mark(sc, el[0].text, why)
			}
		}
	}
}

// typeNameOf is the type name reported for v once it is no longer known.
func typeNameOf(v Value) string {
	if v.Kind == KindImport {
		return "object"
	}
	return v.TypeName()
}
