package main

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

const (
	// maxRepeat bounds the size of sequences built with '*'.
	maxRepeat = 1 << 20
	// maxIntBits bounds the size of ints built with '**' and '<<'.
	maxIntBits = 1 << 20
)

// unsupportedError marks source that is valid but is not evaluated. The
// statement it appears in binds an opaque value instead of failing the
// module.
type unsupportedError struct {
	note string
}

func (e *unsupportedError) Error() string { return e.note }

func unsupported(format string, args ...any) error {
	return &unsupportedError{note: fmt.Sprintf(format, args...)}
}

type exprParser struct {
	m   *Module
	ts  []token
	pos int
}

// eval evaluates the right-hand side of an assignment. A bare comma list is
// a tuple.
func (m *Module) eval(ts []token) (Value, error) {
	p := &exprParser{m: m, ts: ts}
	v, err := p.parseTop()
	var u *unsupportedError
	if errors.As(err, &u) {
		return OpaqueValue("expression", u.note), nil
	}
	return v, err
}

func (p *exprParser) parseTop() (Value, error) {
	items, comma, err := p.parseItems("")
	if err != nil {
		return Value{}, err
	}
	if p.pos < len(p.ts) {
		return Value{}, p.unexpected(p.ts[p.pos])
	}
	if len(items) == 0 {
		return Value{}, p.syntaxError(p.last(), "invalid syntax")
	}
	if comma {
		return TupleValue(items...), nil
	}
	return items[0], nil
}

func (p *exprParser) last() token {
	if p.pos < len(p.ts) {
		return p.ts[p.pos]
	}
	return p.ts[len(p.ts)-1]
}

func (p *exprParser) syntaxError(t token, msg string) error {
	return &SyntaxError{File: p.m.File, Line: t.line, Col: t.col, Msg: msg}
}

// unexpected reports a token that cannot continue the expression. Colons and
// keywords start constructs this evaluator does not model (lambdas, slices,
// conditionals, comprehensions); anything else is a syntax error.
func (p *exprParser) unexpected(t token) error {
	switch {
	case t.is(tokOp, ":"), t.is(tokOp, ":="):
		return unsupported("%q expression", t.text)
	case t.kind == tokName && keywords[t.text]:
		return unsupported("%q expression", t.text)
	}
	return p.syntaxError(t, "invalid syntax")
}

func (p *exprParser) peekOp(op string) bool {
	return p.pos < len(p.ts) && p.ts[p.pos].is(tokOp, op)
}

func (p *exprParser) acceptOp(op string) bool {
	if p.peekOp(op) {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expectOp(op string) error {
	if p.acceptOp(op) {
		return nil
	}
	if p.pos >= len(p.ts) {
		return p.syntaxError(p.last(), fmt.Sprintf("expected '%s'", op))
	}
	return p.unexpected(p.ts[p.pos])
}

// parseItems parses a comma separated list up to closer ("" for the end of
// input). It reports whether any comma was seen.
func (p *exprParser) parseItems(closer string) ([]Value, bool, error) {
	var items []Value
	comma := false
	for {
		if (closer == "" && p.pos >= len(p.ts)) || (closer != "" && p.peekOp(closer)) {
			break
		}
		if p.peekOp("*") || p.peekOp("**") {
			return nil, false, unsupported("starred expression")
		}
		v, err := p.parseExpr(0)
		if err != nil {
			return nil, false, err
		}
		items = append(items, v)
		if p.pos < len(p.ts) && p.ts[p.pos].is(tokName, "for") {
			return nil, false, unsupported("comprehension")
		}
		if !p.acceptOp(",") {
			break
		}
		comma = true
	}
	return items, comma, nil
}

// Binding powers of the infix operators that are parsed. Comparisons are
// reported as unsupported when they are reached.
var infixPower = map[string]int{
	"|": 4, "^": 5, "&": 6,
	"<<": 8, ">>": 8,
	"+": 10, "-": 10,
	"*": 20, "/": 20, "//": 20, "%": 20, "@": 20,
	"**": 40,
}

const unaryPower = 30

var unsupportedInfix = map[string]bool{
	"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true,
	":=": true,
}

func (p *exprParser) parseExpr(minPower int) (Value, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return Value{}, err
	}
	for p.pos < len(p.ts) {
		t := p.ts[p.pos]
		if t.kind == tokName {
			switch t.text {
			case "if", "and", "or", "in", "is", "not":
				return Value{}, unsupported("%q expression", t.text)
			}
			return left, nil
		}
		if t.kind != tokOp {
			return left, nil
		}
		switch t.text {
		case "(":
			args, err := p.group()
			if err != nil {
				return Value{}, err
			}
			left, err = p.call(left, args)
			if err != nil {
				return Value{}, err
			}
			continue
		case "[":
			if _, err := p.group(); err != nil {
				return Value{}, err
			}
			left = opaqueOperand(left, OpaqueValue("object", "subscript"))
			continue
		case ".":
			p.pos++
			if p.pos >= len(p.ts) || p.ts[p.pos].kind != tokName {
				return Value{}, p.syntaxError(p.last(), "invalid syntax")
			}
			left = opaqueOperand(left, OpaqueValue("object", "attribute "+p.ts[p.pos].text))
			p.pos++
			continue
		}
		if unsupportedInfix[t.text] {
			return Value{}, unsupported("%q operator", t.text)
		}
		power, ok := infixPower[t.text]
		if !ok || power <= minPower {
			return left, nil
		}
		p.pos++
		next := power
		if t.text == "**" {
			next = power - 1
		}
		right, err := p.parseExpr(next)
		if err != nil {
			return Value{}, err
		}
		left = binaryOp(t.text, left, right)
	}
	return left, nil
}

func (p *exprParser) parsePrefix() (Value, error) {
	if p.pos >= len(p.ts) {
		return Value{}, p.syntaxError(p.last(), "unexpected end of expression")
	}
	t := p.ts[p.pos]
	p.pos++
	switch t.kind {
	case tokNumber:
		return t.val, nil
	case tokString:
		return p.concatStrings(t)
	case tokName:
		return p.name(t)
	}

	switch t.text {
	case "(":
		items, comma, err := p.parseItems(")")
		if err != nil {
			return Value{}, err
		}
		if err := p.expectOp(")"); err != nil {
			return Value{}, err
		}
		if len(items) == 1 && !comma {
			return items[0], nil
		}
		return TupleValue(items...), nil
	case "[":
		items, _, err := p.parseItems("]")
		if err != nil {
			return Value{}, err
		}
		if err := p.expectOp("]"); err != nil {
			return Value{}, err
		}
		return ListValue(items...), nil
	case "{":
		return p.brace()
	case "-", "+", "~":
		operand, err := p.parseExpr(unaryPower)
		if err != nil {
			return Value{}, err
		}
		return unaryOp(t.text, operand), nil
	case "...":
		return OpaqueValue("ellipsis", "Ellipsis"), nil
	case "*", "**":
		return Value{}, unsupported("starred expression")
	}
	return Value{}, p.syntaxError(t, "invalid syntax")
}

// concatStrings concatenates adjacent string literals.
func (p *exprParser) concatStrings(first token) (Value, error) {
	v := first.val
	fstring, note := first.fstring, first.note
	for p.pos < len(p.ts) && p.ts[p.pos].kind == tokString {
		t := p.ts[p.pos]
		p.pos++
		if t.val.Kind != v.Kind {
			return Value{}, p.syntaxError(t, "cannot mix bytes and nonbytes literals")
		}
		v.Str += t.val.Str
		fstring = fstring || t.fstring
		if t.note != "" {
			note = t.note
		}
	}
	switch {
	case fstring:
		return OpaqueValue("str", "f-string"), nil
	case note != "":
		return OpaqueValue(v.TypeName(), note), nil
	}
	return v, nil
}

var builtins = map[string]bool{
	"chr": true, "bytes": true, "dict": true, "float": true, "int": true,
	"len": true, "list": true, "range": true, "set": true, "str": true,
	"tuple": true, "print": true, "zip": true, "map": true, "sorted": true,
}

func (p *exprParser) name(t token) (Value, error) {
	switch t.text {
	case "None":
		return NoneValue(), nil
	case "True":
		return BoolValue(true), nil
	case "False":
		return BoolValue(false), nil
	}
	if keywords[t.text] {
		switch t.text {
		case "lambda", "not", "await", "yield":
			return Value{}, unsupported("%q expression", t.text)
		}
		return Value{}, p.syntaxError(t, "invalid syntax")
	}
	v, bound := p.m.names[t.text]
	_, shadowed := p.m.starAfter(t.text)
	switch {
	case bound && !shadowed:
		return v, nil
	case shadowed && (bound || !builtins[t.text]):
		return p.m.starValue(t.text), nil
	case builtins[t.text]:
		return OpaqueValue("builtin_function_or_method", t.text), nil
	}
	return OpaqueValue("NameError", fmt.Sprintf("name %q is not defined", t.text)), nil
}

func (p *exprParser) brace() (Value, error) {
	if p.acceptOp("}") {
		return DictValue()
	}
	if p.peekOp("**") || p.peekOp("*") {
		return Value{}, unsupported("unpacking in display")
	}
	first, err := p.parseExpr(0)
	if err != nil {
		return Value{}, err
	}
	if !p.acceptOp(":") {
		// set display
		items := []Value{first}
		if p.acceptOp(",") {
			rest, _, err := p.parseItems("}")
			if err != nil {
				return Value{}, err
			}
			items = append(items, rest...)
		} else if p.pos < len(p.ts) && p.ts[p.pos].is(tokName, "for") {
			return Value{}, unsupported("comprehension")
		}
		if err := p.expectOp("}"); err != nil {
			return Value{}, err
		}
		return SetValue(items...), nil
	}

	var entries []DictItem
	key := first
	for {
		val, err := p.parseExpr(0)
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, DictItem{Key: key, Value: val})
		if p.pos < len(p.ts) && p.ts[p.pos].is(tokName, "for") {
			return Value{}, unsupported("comprehension")
		}
		if !p.acceptOp(",") || p.peekOp("}") {
			break
		}
		if p.peekOp("**") {
			return Value{}, unsupported("unpacking in display")
		}
		if key, err = p.parseExpr(0); err != nil {
			return Value{}, err
		}
		if err := p.expectOp(":"); err != nil {
			return Value{}, err
		}
	}
	if err := p.expectOp("}"); err != nil {
		return Value{}, err
	}
	for _, e := range entries {
		if e.Key.Kind == KindOpaque || e.Key.Kind == KindImport {
			return OpaqueValue("dict", "dict with an unevaluated key"), nil
		}
	}
	d, err := DictValue(entries...)
	if err != nil {
		return OpaqueValue("TypeError", err.Error()), nil
	}
	return d, nil
}

// group consumes a bracketed group starting at the current token and returns
// the tokens inside it.
func (p *exprParser) group() ([]token, error) {
	open := p.ts[p.pos]
	depth := 0
	for i := p.pos; i < len(p.ts); i++ {
		t := p.ts[i]
		if t.kind != tokOp {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				inner := p.ts[p.pos+1 : i]
				p.pos = i + 1
				return inner, nil
			}
		}
	}
	return nil, p.syntaxError(open, fmt.Sprintf("'%s' was never closed", open.text))
}

func (p *exprParser) call(fn Value, args []token) (Value, error) {
	if fn.Kind != KindOpaque || fn.Str != "builtin_function_or_method" || fn.Note != "chr" {
		return opaqueOperand(fn, OpaqueValue("object", "result of a call")), nil
	}
	sub := &exprParser{m: p.m, ts: args}
	items, _, err := sub.parseItems("")
	if err != nil {
		return Value{}, err
	}
	if sub.pos < len(args) {
		return Value{}, sub.unexpected(args[sub.pos])
	}
	if len(items) != 1 {
		return OpaqueValue("TypeError", fmt.Sprintf("chr() takes exactly one argument (%d given)", len(items))), nil
	}
	return builtinChr(items[0]), nil
}

func builtinChr(v Value) Value {
	if v.Kind == KindOpaque || v.Kind == KindImport {
		return opaqueOperand(v, v)
	}
	if v.Kind != KindInt && v.Kind != KindBool {
		return OpaqueValue("TypeError", fmt.Sprintf("an integer is required (got type %s)", v.TypeName()))
	}
	i := v.bigInt()
	if !i.IsInt64() || i.Int64() < 0 || i.Int64() > 0x10FFFF {
		return OpaqueValue("ValueError", "chr() arg not in range(0x110000)")
	}
	r := rune(i.Int64())
	if r >= 0xD800 && r <= 0xDFFF {
		return StrValue(string(appendSurrogate(nil, r)))
	}
	return StrValue(string(r))
}

// opaqueOperand propagates an operand that cannot be evaluated, or returns
// fallback.
func opaqueOperand(v, fallback Value) Value {
	switch v.Kind {
	case KindOpaque:
		if v.Str == "builtin_function_or_method" || v.Str == "function" || v.Str == "type" || v.Str == "module" {
			return fallback
		}
		return v
	case KindImport:
		return OpaqueValue("expression", fmt.Sprintf("expression uses %q imported from %q", v.ref.name, v.ref.module))
	}
	return fallback
}

func binaryOp(op string, l, r Value) Value {
	for _, v := range []Value{l, r} {
		if v.Kind == KindOpaque || v.Kind == KindImport {
			return opaqueOperand(v, OpaqueValue("TypeError",
				fmt.Sprintf("unsupported operand type(s) for %s: '%s' and '%s'", op, l.TypeName(), r.TypeName())))
		}
	}
	switch op {
	case "+":
		switch {
		case l.Kind == KindStr && r.Kind == KindStr:
			return StrValue(l.Str + r.Str)
		case l.Kind == KindBytes && r.Kind == KindBytes:
			return BytesValue(l.Str + r.Str)
		case l.isSequence() && l.Kind == r.Kind:
			items := make([]Value, 0, len(l.Items)+len(r.Items))
			items = append(append(items, l.Items...), r.Items...)
			return sequenceValue(l.Kind, items)
		case l.isNumber() && r.isNumber():
			return arith(op, l, r)
		}
	case "-":
		if l.isNumber() && r.isNumber() {
			return arith(op, l, r)
		}
	case "*":
		switch {
		case l.isNumber() && r.isNumber():
			return arith(op, l, r)
		case isCount(r) && (l.isSequence() || l.Kind == KindStr || l.Kind == KindBytes):
			return repeat(l, r.bigInt())
		case isCount(l) && (r.isSequence() || r.Kind == KindStr || r.Kind == KindBytes):
			return repeat(r, l.bigInt())
		}
	case "/", "//", "**", "<<", ">>", "&", "|", "^":
		if l.isNumber() && r.isNumber() {
			return arith(op, l, r)
		}
		return OpaqueValue("expression", fmt.Sprintf("%q operator on %s and %s is not evaluated", op, l.TypeName(), r.TypeName()))
	case "%":
		if l.isNumber() && r.isNumber() {
			return arith(op, l, r)
		}
		if l.Kind == KindStr || l.Kind == KindBytes {
			return OpaqueValue("expression", "string formatting is not evaluated")
		}
	default:
		return OpaqueValue("expression", fmt.Sprintf("%q operator is not evaluated", op))
	}
	return OpaqueValue("TypeError", fmt.Sprintf("unsupported operand type(s) for %s: '%s' and '%s'", op, l.TypeName(), r.TypeName()))
}

func isCount(v Value) bool { return v.Kind == KindInt || v.Kind == KindBool }

// arith applies a numeric operator with Python's rules: ints never
// overflow, '/' always gives a float, '//' and '%' round toward negative
// infinity.
func arith(op string, l, r Value) Value {
	if l.Kind == KindBool && r.Kind == KindBool && (op == "&" || op == "|" || op == "^") {
		switch op {
		case "&":
			return BoolValue(l.Bool && r.Bool)
		case "|":
			return BoolValue(l.Bool || r.Bool)
		}
		return BoolValue(l.Bool != r.Bool)
	}
	if l.Kind == KindFloat || r.Kind == KindFloat {
		switch op {
		case "<<", ">>", "&", "|", "^":
			return OpaqueValue("TypeError", fmt.Sprintf("unsupported operand type(s) for %s: '%s' and '%s'", op, l.TypeName(), r.TypeName()))
		}
		return floatArith(op, l.float(), r.float())
	}
	a, b := l.bigInt(), r.bigInt()
	switch op {
	case "+":
		return BigIntValue(new(big.Int).Add(a, b))
	case "-":
		return BigIntValue(new(big.Int).Sub(a, b))
	case "*":
		return BigIntValue(new(big.Int).Mul(a, b))
	case "/":
		if b.Sign() == 0 {
			return OpaqueValue("ZeroDivisionError", "division by zero")
		}
		f, _ := new(big.Rat).SetFrac(a, b).Float64()
		if math.IsInf(f, 0) {
			return OpaqueValue("OverflowError", "integer division result too large for a float")
		}
		return FloatValue(f)
	case "//", "%":
		if b.Sign() == 0 {
			return OpaqueValue("ZeroDivisionError", "integer division or modulo by zero")
		}
		q, m := new(big.Int).QuoRem(a, b, new(big.Int))
		if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
			m.Add(m, b)
		}
		if op == "//" {
			return BigIntValue(q)
		}
		return BigIntValue(m)
	case "**":
		return intPow(a, b)
	case "<<", ">>":
		if b.Sign() < 0 {
			return OpaqueValue("ValueError", "negative shift count")
		}
		if op == ">>" {
			if !b.IsInt64() || b.Int64() > int64(a.BitLen()) {
				if a.Sign() < 0 {
					return IntValue(-1)
				}
				return IntValue(0)
			}
			return BigIntValue(new(big.Int).Rsh(a, uint(b.Int64())))
		}
		if a.Sign() == 0 {
			return IntValue(0)
		}
		if !b.IsInt64() || int64(a.BitLen())+b.Int64() > maxIntBits {
			return OpaqueValue("int", "shift result is too large to evaluate")
		}
		return BigIntValue(new(big.Int).Lsh(a, uint(b.Int64())))
	case "&":
		return BigIntValue(new(big.Int).And(a, b))
	case "|":
		return BigIntValue(new(big.Int).Or(a, b))
	default:
		return BigIntValue(new(big.Int).Xor(a, b))
	}
}

func intPow(a, b *big.Int) Value {
	if b.Sign() < 0 {
		fa, _ := new(big.Float).SetInt(a).Float64()
		fb, _ := new(big.Float).SetInt(b).Float64()
		return floatArith("**", fa, fb)
	}
	if a.CmpAbs(big.NewInt(1)) > 0 && (!b.IsInt64() || int64(a.BitLen()-1)*b.Int64() > maxIntBits) {
		return OpaqueValue("int", "power is too large to evaluate")
	}
	return BigIntValue(new(big.Int).Exp(a, b, nil))
}

func floatArith(op string, a, b float64) Value {
	switch op {
	case "+":
		return FloatValue(a + b)
	case "-":
		return FloatValue(a - b)
	case "*":
		return FloatValue(a * b)
	case "/":
		if b == 0 {
			return OpaqueValue("ZeroDivisionError", "float division by zero")
		}
		return FloatValue(a / b)
	case "//":
		if b == 0 {
			return OpaqueValue("ZeroDivisionError", "float floor division by zero")
		}
		div, _ := floatDivmod(a, b)
		return FloatValue(div)
	case "%":
		if b == 0 {
			return OpaqueValue("ZeroDivisionError", "float modulo by zero")
		}
		_, mod := floatDivmod(a, b)
		return FloatValue(mod)
	}
	// '**'
	switch {
	case a == 0 && b < 0:
		return OpaqueValue("ZeroDivisionError", "zero to a negative power")
	case a < 0 && b != math.Trunc(b) && !math.IsInf(b, 0):
		return OpaqueValue("complex", "negative number to a fractional power")
	}
	f := math.Pow(a, b)
	if math.IsInf(f, 0) && !math.IsInf(a, 0) && !math.IsInf(b, 0) {
		return OpaqueValue("OverflowError", "numerical result out of range")
	}
	return FloatValue(f)
}

// floatDivmod returns the floored quotient and the modulo of a and b, with
// the modulo taking the sign of b.
func floatDivmod(a, b float64) (float64, float64) {
	mod := math.Mod(a, b)
	div := (a - mod) / b
	if mod != 0 {
		if (b < 0) != (mod < 0) {
			mod += b
			div--
		}
	} else {
		mod = math.Copysign(0, b)
	}
	if div == 0 {
		return math.Copysign(0, a/b), mod
	}
	floor := math.Floor(div)
	if div-floor > 0.5 {
		floor++
	}
	return floor, mod
}

func repeat(seq Value, n *big.Int) Value {
	if n.Sign() <= 0 {
		if seq.isSequence() {
			return sequenceValue(seq.Kind, nil)
		}
		return Value{Kind: seq.Kind}
	}
	size := seq.Len()
	if !n.IsInt64() || (size > 0 && n.Int64() > maxRepeat/int64(size)) {
		return OpaqueValue(seq.TypeName(), "repetition is too large to evaluate")
	}
	count := int(n.Int64())
	if !seq.isSequence() {
		out := make([]byte, 0, size*count)
		for i := 0; i < count; i++ {
			out = append(out, seq.Str...)
		}
		return Value{Kind: seq.Kind, Str: string(out)}
	}
	items := make([]Value, 0, size*count)
	for i := 0; i < count; i++ {
		items = append(items, seq.Items...)
	}
	return sequenceValue(seq.Kind, items)
}

func unaryOp(op string, v Value) Value {
	if v.Kind == KindOpaque || v.Kind == KindImport {
		return opaqueOperand(v, OpaqueValue("TypeError", fmt.Sprintf("bad operand type for unary %s", op)))
	}
	switch {
	case !v.isNumber() || (op == "~" && v.Kind == KindFloat):
		return OpaqueValue("TypeError", fmt.Sprintf("bad operand type for unary %s: '%s'", op, v.TypeName()))
	case op == "~":
		return BigIntValue(new(big.Int).Not(v.bigInt()))
	case v.Kind == KindFloat && op == "-":
		return FloatValue(-v.Float)
	case v.Kind == KindFloat:
		return v
	case op == "-":
		return BigIntValue(new(big.Int).Neg(v.bigInt()))
	}
	return BigIntValue(v.bigInt())
}
