package main

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Module is the top-level namespace of a reference module: every name bound
// by a top-level statement, in binding order.
type Module struct {
	Name string
	File string

	names map[string]Value
	order []string
	seq   map[string]int // clock reading of each name's latest binding or deletion
	clock int
	stars []starImport
	defs  map[string]map[string]bool // names a function or class may change when called, true if it may rebind them

	loader *Loader
}

// starImport is a "from m import *" statement. A name bound before it is
// resolved through m first.
type starImport struct {
	module    string
	seq       int
	uncertain bool // inside a compound statement
}

var errNotExported = errors.New("not exported")

// Names returns the bound names in the order they were first bound.
func (m *Module) Names() []string {
	out := make([]string, 0, len(m.order))
	for _, n := range m.order {
		if _, ok := m.names[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Lookup returns the value bound to name. Names imported from another module
// are resolved through the module's loader.
func (m *Module) Lookup(name string) (Value, error) {
	return m.lookup(name, map[string]bool{})
}

func (m *Module) lookup(name string, seen map[string]bool) (Value, error) {
	key := m.Name + "." + name
	if seen[key] {
		return Value{}, &ModuleError{Name: m.Name, Path: m.File, cause: fmt.Errorf("circular import of %q", name)}
	}
	seen[key] = true
	defer delete(seen, key)

	for i := len(m.stars) - 1; i >= 0 && m.stars[i].seq > m.seq[name]; i-- {
		v, err := m.importStar(m.stars[i], name, seen)
		if errors.Is(err, errNotExported) {
			continue
		}
		return v, err
	}
	v, ok := m.names[name]
	if !ok {
		return Value{}, &AttributeError{Module: m.Name, Name: name}
	}
	if v.Kind != KindImport {
		return v, nil
	}
	ref := v.ref
	v, err := m.importFrom(ref.module, ref.name, seen)
	if errors.Is(err, ErrAttributeMissing) && !errors.Is(err, ErrModuleNotFound) {
		return Value{}, &ModuleError{Name: m.Name, Path: m.File,
			cause: fmt.Errorf("cannot import name %q from %q: %w", ref.name, ref.module, err)}
	}
	return v, err
}

func (m *Module) importFrom(module, name string, seen map[string]bool) (Value, error) {
	src, err := m.importModule(module)
	if err != nil {
		return Value{}, err
	}
	return src.lookup(name, seen)
}

func (m *Module) importModule(module string) (*Module, error) {
	if m.loader == nil {
		return nil, &ModuleError{Name: module, cause: errors.New("imports are not available for this module")}
	}
	return m.loader.Import(module)
}

// importStar resolves name through a star import. It returns errNotExported
// when the import does not bind name.
func (m *Module) importStar(st starImport, name string, seen map[string]bool) (Value, error) {
	src, err := m.importModule(st.module)
	if err != nil {
		return Value{}, err
	}
	rule := src.exports(name)
	if rule == notExported {
		return Value{}, errNotExported
	}
	v, err := src.lookup(name, seen)
	if errors.Is(err, ErrAttributeMissing) && !errors.Is(err, ErrModuleNotFound) {
		if rule == listedInAll {
			return Value{}, &ModuleError{Name: m.Name, Path: m.File,
				cause: fmt.Errorf("__all__ of %q lists %q, which it does not bind: %w", st.module, name, err)}
		}
		return Value{}, errNotExported
	}
	if err != nil {
		return Value{}, err
	}
	if rule == maybeExported || st.uncertain {
		return OpaqueValue(typeNameOf(v), fmt.Sprintf("%s may be bound by from %s import *", name, st.module)), nil
	}
	return v, nil
}

// export says whether "from m import *" binds a name.
type export int

const (
	notExported export = iota
	exportedByDefault  // public name of a module without __all__
	listedInAll
	maybeExported // __all__ is not a list or tuple of str literals
)

func (m *Module) exports(name string) export {
	all, err := m.Lookup("__all__")
	switch {
	case errors.Is(err, ErrAttributeMissing) && !errors.Is(err, ErrModuleNotFound):
		if strings.HasPrefix(name, "_") {
			return notExported
		}
		return exportedByDefault
	case err != nil || !all.isSequence():
		return maybeExported
	}
	rule := notExported
	for _, it := range all.Items {
		if it.Kind != KindStr {
			return maybeExported
		}
		if it.Str == name {
			rule = listedInAll
		}
	}
	return rule
}

// starAfter returns the latest star import made after name was last bound
// or deleted.
func (m *Module) starAfter(name string) (starImport, bool) {
	if n := len(m.stars); n > 0 && m.stars[n-1].seq > m.seq[name] {
		return m.stars[n-1], true
	}
	return starImport{}, false
}

// starValue evaluates a name that a star import may have rebound.
func (m *Module) starValue(name string) Value {
	if m.loader == nil {
		st, _ := m.starAfter(name)
		return OpaqueValue("object", fmt.Sprintf("%s may be bound by from %s import *", name, st.module))
	}
	v, err := m.Lookup(name)
	if err != nil {
		return OpaqueValue("NameError", err.Error())
	}
	return v
}

func (m *Module) tick() int {
	m.clock++
	return m.clock
}

func (m *Module) bind(name string, v Value) {
	if _, ok := m.names[name]; !ok {
		m.order = append(m.order, name)
	}
	m.names[name] = v
	m.seq[name] = m.tick()
}

func (m *Module) unbind(name string) {
	delete(m.names, name)
	m.seq[name] = m.tick()
}

// ParseModule reads module source and evaluates its top-level statements.
// Function bodies are not run. Names a statement may change without the
// change being evaluated, such as names assigned inside an if or for
// block or a list passed to a method call, are bound to opaque values.
func ParseModule(name, file string, src []byte) (*Module, error) {
	return parseModule(name, file, src, nil)
}

func parseModule(name, file string, src []byte, l *Loader) (*Module, error) {
	stmts, err := lex(file, src)
	if err != nil {
		return nil, err
	}
	m := &Module{
		Name:   name,
		File:   file,
		names:  make(map[string]Value),
		seq:    make(map[string]int),
		defs:   make(map[string]map[string]bool),
		loader: l,
	}
	if err := m.run(nil, stmts); err != nil {
		return nil, err
	}
	return m, nil
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

func isIdentifier(s string) bool {
	if s == "" || keywords[s] {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// run executes a block. Each statement takes the more indented statements
// after it as its body, or the rest of its line when the body follows the
// colon directly.
func (m *Module) run(sc *scope, stmts []statement) error {
	for i := 0; i < len(stmts); {
		st := stmts[i]
		i++
		var body []statement
		if c := headerColon(st.tokens); isCompound(st.tokens) && c >= 0 && c < len(st.tokens)-1 {
			body = append(body, statement{indent: st.indent + 1, line: st.line, tokens: st.tokens[c+1:]})
			for i < len(stmts) && stmts[i].cont {
				s := stmts[i]
				s.indent = st.indent + 1
				body = append(body, s)
				i++
			}
			st.tokens = st.tokens[:c+1]
		} else {
			for i < len(stmts) && stmts[i].indent > st.indent {
				body = append(body, stmts[i])
				i++
			}
		}
		if err := m.exec(sc, st, body); err != nil {
			return err
		}
	}
	return nil
}

var augmentedOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true, "**=": true,
	"@=": true, "&=": true, "|=": true, "^=": true, ">>=": true, "<<=": true,
}

// exec executes one statement. A nil scope is the module's own top level,
// where statements are evaluated; any other scope only records what the
// statement may change.
func (m *Module) exec(sc *scope, st statement, body []statement) error {
	ts := st.tokens
	why := fmt.Sprintf("the statement on line %d", st.line)
	if isCompound(ts) {
		c := headerColon(ts)
		if c < 0 {
			last := ts[len(ts)-1]
			return &SyntaxError{File: m.File, Line: last.line, Col: last.col, Msg: "expected ':'"}
		}
		return m.execCompound(sc, ts[:c], body, why)
	}
	if len(body) > 0 {
		// a block under a soft keyword such as match
		m.effects(sc, ts, why)
		return m.run(branch(sc), body)
	}

	first := ts[0]
	if first.kind == tokName && keywords[first.text] {
		switch first.text {
		case "import":
			return m.execImport(sc, first, ts[1:], why)
		case "from":
			return m.execFrom(sc, first, ts[1:], why)
		case "del":
			m.execDel(sc, ts[1:], why)
			return nil
		case "global", "nonlocal":
			if sc != nil {
				for _, t := range ts[1:] {
					if t.kind == tokName {
						sc.globals[t.text] = true
					}
				}
			}
			return nil
		case "pass", "break", "continue":
			return nil
		case "return", "raise", "assert":
			m.effects(sc, ts[1:], why)
			return nil
		}
	}

	// Targets are separated by '=' at bracket depth zero.
	var parts [][]token
	depth, begin := 0, 0
	for i, t := range ts {
		if t.kind != tokOp {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 {
				parts = append(parts, ts[begin:i])
				begin = i + 1
			}
		default:
			if depth == 0 && len(parts) == 0 && augmentedOps[t.text] {
				return m.execAugmented(sc, ts[:i], t, ts[i+1:], why)
			}
		}
	}
	if len(parts) == 0 {
		m.effects(sc, ts, why) // expression statement
		return nil
	}
	rhs := ts[begin:]
	if len(rhs) == 0 {
		last := ts[len(ts)-1]
		return &SyntaxError{File: m.File, Line: last.line, Col: last.col, Msg: "invalid syntax"}
	}
	for i, target := range parts {
		if len(parts) == 1 && len(target) > 1 && target[0].kind == tokName && target[1].is(tokOp, ":") {
			parts[i] = target[:1] // annotated assignment
		}
	}
	m.effects(sc, rhs, why)
	if sc != nil {
		for _, target := range parts {
			m.assignUnknown(sc, target, why)
		}
		return nil
	}
	val, err := m.eval(rhs)
	if err != nil {
		return err
	}
	for _, target := range parts {
		m.assign(target, val, why)
	}
	return nil
}

// execCompound runs the header of a compound statement and its body. The
// body of "if __name__ == '__main__'" never runs on import. Function and
// class bodies are scanned for what calling them may change; other bodies
// may or may not run, so every name they bind becomes opaque.
func (m *Module) execCompound(sc *scope, header []token, body []statement, why string) error {
	kw, rest := header[0].text, header[1:]
	if kw == "async" && len(rest) > 0 {
		kw, rest = rest[0].text, rest[1:]
	}
	switch kw {
	case "def", "class":
		if len(rest) == 0 || rest[0].kind != tokName {
			return m.syntaxError(rest, header[0])
		}
		name := rest[0].text
		m.effects(sc, rest[1:], why) // decorators' arguments, defaults and base classes
		inner := &scope{kind: scopeDef, globals: map[string]bool{}, touched: map[string]bool{}}
		val := OpaqueValue("function", "def "+name)
		if kw == "class" {
			inner.kind = scopeClass
			val = OpaqueValue("type", "class "+name)
		}
		if err := m.run(inner, body); err != nil {
			return err
		}
		m.define(sc, name, val, inner.touched, why)
		return nil
	case "if":
		if sc == nil && isMainGuard(rest) {
			return nil
		}
	case "for":
		if k := indexName(rest, "in"); k >= 0 {
			m.assignUnknown(branch(sc), rest[:k], why)
			rest = rest[k+1:]
		}
	case "with":
		for _, item := range splitTop(rest, ",") {
			if k := indexName(item, "as"); k >= 0 {
				m.effects(sc, item[:k], why)
				m.assignUnknown(branch(sc), item[k+1:], why)
			} else {
				m.effects(sc, item, why)
			}
		}
		rest = nil
	case "except":
		if k := indexName(rest, "as"); k >= 0 {
			m.assignUnknown(branch(sc), rest[k+1:], why)
			rest = rest[:k]
		}
	}
	m.effects(sc, rest, why)
	return m.run(branch(sc), body)
}

// isMainGuard matches the condition __name__ == "__main__", either way round.
func isMainGuard(ts []token) bool {
	if len(ts) != 3 || !ts[1].is(tokOp, "==") {
		return false
	}
	isName := func(t token) bool { return t.is(tokName, "__name__") }
	isMain := func(t token) bool { return t.kind == tokString && t.val.Kind == KindStr && t.val.Str == "__main__" }
	return (isName(ts[0]) && isMain(ts[2])) || (isMain(ts[0]) && isName(ts[2]))
}

// assign binds val to a target at the top level: a name, or a list of
// targets val is unpacked into. Subscript and attribute targets change the
// object they index into.
func (m *Module) assign(target []token, val Value, why string) {
	if len(target) == 1 && target[0].kind == tokName {
		m.bind(target[0].text, val)
		return
	}
	var elems [][]token
	switch {
	case enclosed(target) && target[0].is(tokOp, "(") && len(splitTop(target[1:len(target)-1], ",")) == 1:
		m.assign(target[1:len(target)-1], val, why)
		return
	case enclosed(target):
		elems = splitTop(target[1:len(target)-1], ",")
	case len(splitTop(target, ",")) > 1:
		elems = splitTop(target, ",")
	default:
		m.assignUnknown(nil, target, why)
		return
	}
	if n := len(elems); n > 1 && len(elems[n-1]) == 0 {
		elems = elems[:n-1] // trailing comma
	}
	for _, el := range elems {
		if len(el) == 0 || el[0].is(tokOp, "*") {
			m.assignUnknown(nil, target, why)
			return
		}
	}
	if !val.isSequence() || len(val.Items) != len(elems) {
		note := fmt.Sprintf("cannot unpack %s into %d names", val.TypeName(), len(elems))
		if val.Kind == KindOpaque {
			note = val.Note
		}
		for _, el := range elems {
			if len(el) == 1 && el[0].kind == tokName {
				m.bind(el[0].text, OpaqueValue("unpacked", note))
			} else {
				m.assignUnknown(nil, el, why)
			}
		}
		return
	}
	for i, el := range elems {
		m.assign(el, val.Items[i], why)
	}
}

// execAugmented runs "target op= value". Lists, dicts and sets are updated
// in place, so names sharing the object see the change too.
func (m *Module) execAugmented(sc *scope, target []token, op token, rhs []token, why string) error {
	if len(rhs) == 0 || len(target) == 0 {
		return &SyntaxError{File: m.File, Line: op.line, Col: op.col, Msg: "invalid syntax"}
	}
	m.effects(sc, rhs, why)
	if len(target) != 1 || target[0].kind != tokName {
		m.assignUnknown(sc, target, why)
		return nil
	}
	name := target[0].text
	if sc != nil {
		m.mark(sc, name, why)
		m.rebind(sc, name, why)
		return nil
	}
	val, err := m.eval(rhs)
	if err != nil {
		return err
	}
	if _, shadowed := m.starAfter(name); shadowed {
		m.changed(name, why, true, map[string]bool{})
		return nil
	}
	cur, ok := m.names[name]
	if !ok {
		m.bind(name, OpaqueValue("NameError", fmt.Sprintf("name %q is not defined", name)))
		return nil
	}
	res := binaryOp(strings.TrimSuffix(op.text, "="), cur, val)
	if cur.ident != nil || cur.Kind == KindImport {
		m.shareChanged(name, cur, why)
		if res.Kind == cur.Kind {
			res.ident = cur.ident
		}
	}
	m.bind(name, res)
	return nil
}

// execDel unbinds plain names. Deleting a subscript or attribute changes
// the object it belongs to.
func (m *Module) execDel(sc *scope, ts []token, why string) {
	if enclosed(ts) {
		ts = ts[1 : len(ts)-1]
	}
	for _, el := range splitTop(ts, ",") {
		switch {
		case len(el) == 0:
		case len(el) == 1 && el[0].kind == tokName:
			if sc == nil {
				m.unbind(el[0].text)
			} else {
				m.rebind(sc, el[0].text, why)
			}
		case enclosed(el):
			m.execDel(sc, el, why)
		default:
			m.effects(sc, el, why)
			if el[0].kind == tokName {
				m.mark(sc, el[0].text, why)
			}
		}
	}
}

// execImport binds "import a.b" as a and "import a.b as c" as c.
func (m *Module) execImport(sc *scope, kw token, ts []token, why string) error {
	for _, clause := range splitTop(ts, ",") {
		dotted, rest := readDotted(clause)
		if dotted == "" {
			return m.syntaxError(clause, kw)
		}
		bound := strings.SplitN(dotted, ".", 2)[0]
		if len(rest) == 2 && rest[0].is(tokName, "as") && rest[1].kind == tokName {
			bound = rest[1].text
		} else if len(rest) != 0 {
			return m.syntaxError(rest, kw)
		}
		m.bindIn(sc, bound, OpaqueValue("module", "module "+dotted), why)
	}
	return nil
}

// execFrom records "from m import a, b as c" bindings. The names are resolved
// when looked up, so importing from a module that is never read costs
// nothing.
func (m *Module) execFrom(sc *scope, kw token, ts []token, why string) error {
	relative := false
	for len(ts) > 0 && (ts[0].is(tokOp, ".") || ts[0].is(tokOp, "...")) {
		relative = true
		ts = ts[1:]
	}
	dotted, rest := readDotted(ts)
	if len(rest) == 0 || !rest[0].is(tokName, "import") {
		return m.syntaxError(rest, kw)
	}
	rest = rest[1:]
	if len(rest) >= 2 && rest[0].is(tokOp, "(") && rest[len(rest)-1].is(tokOp, ")") {
		rest = rest[1 : len(rest)-1]
	}
	if len(rest) == 1 && rest[0].is(tokOp, "*") {
		if relative || dotted == "" {
			return nil
		}
		switch {
		case sc == nil:
			m.stars = append(m.stars, starImport{module: dotted, seq: m.tick()})
		case sc.kind == scopeBranch:
			m.stars = append(m.stars, starImport{module: dotted, seq: m.tick(), uncertain: true})
		}
		return nil
	}
	for _, clause := range splitTop(rest, ",") {
		if len(clause) == 0 {
			continue
		}
		if clause[0].kind != tokName {
			return m.syntaxError(clause, kw)
		}
		name, bound := clause[0].text, clause[0].text
		if len(clause) == 3 && clause[1].is(tokName, "as") && clause[2].kind == tokName {
			bound = clause[2].text
		} else if len(clause) != 1 {
			return m.syntaxError(clause, kw)
		}
		if relative || dotted == "" {
			m.bindIn(sc, bound, OpaqueValue("module", "relative import of "+name), why)
			continue
		}
		m.bindIn(sc, bound, importValue(dotted, name), why)
	}
	return nil
}

// bindIn binds name at the top level, or records that a scope may bind it.
func (m *Module) bindIn(sc *scope, name string, v Value, why string) {
	if sc == nil {
		m.bind(name, v)
		return
	}
	m.rebind(sc, name, why)
}

func (m *Module) syntaxError(at []token, t token) error {
	if len(at) > 0 {
		t = at[0]
	}
	return &SyntaxError{File: m.File, Line: t.line, Col: t.col, Msg: "invalid syntax"}
}

// readDotted reads a dotted name such as a.b.c from the front of ts.
func readDotted(ts []token) (string, []token) {
	var parts []string
	for len(ts) > 0 && ts[0].kind == tokName && !keywords[ts[0].text] {
		parts = append(parts, ts[0].text)
		ts = ts[1:]
		if len(ts) < 2 || !ts[0].is(tokOp, ".") {
			break
		}
		ts = ts[1:]
	}
	return strings.Join(parts, "."), ts
}

// splitTop splits ts on the operator sep at bracket depth zero.
func splitTop(ts []token, sep string) [][]token {
	var out [][]token
	depth, begin := 0, 0
	for i, t := range ts {
		if t.kind != tokOp {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case sep:
			if depth == 0 {
				out = append(out, ts[begin:i])
				begin = i + 1
			}
		}
	}
	return append(out, ts[begin:])
}
