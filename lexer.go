package main

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/runenames"
)

type tokenKind int

const (
	tokName tokenKind = iota
	tokNumber
	tokString
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokName:
		return "name"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	default:
		return "operator"
	}
}

type token struct {
	kind tokenKind
	text string // source text for names and operators, prefix+quote for strings
	val  Value  // literal value of numbers and strings
	line int
	col  int

	fstring bool   // f-prefixed string, never evaluated
	note    string // set when a literal is valid but not evaluated
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// statement is one simple statement: a logical line, or one ';'-separated
// part of it.
type statement struct {
	indent int // column of the first token, tabs expanded to multiples of 8
	line   int
	tokens []token
	cont   bool // follows a ';' on the same logical line
}

// Operators, longest first.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", ">>", "<<", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

type lexer struct {
	file string
	src  string
	pos  int
	line int
	col  int

	stmts   []statement
	cur     *statement
	open    []token // unclosed brackets
	indents []int

	atLineStart  bool
	expectIndent bool
	lastColon    bool
}

// lex splits module source into simple statements. Indentation is checked
// the way the interpreter checks it, so a file that would not import does
// not lex either.
func lex(file string, src []byte) ([]statement, error) {
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	if !utf8.ValidString(text) {
		return nil, &SyntaxError{File: file, Line: 1, Col: 1, Msg: "source is not valid UTF-8"}
	}
	l := &lexer{file: file, src: text, line: 1, col: 1, indents: []int{0}, atLineStart: true}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.stmts, nil
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return &SyntaxError{File: l.file, Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else if l.src[l.pos]&0xC0 != 0x80 {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) run() error {
	for {
		if l.atLineStart {
			done, err := l.beginLine()
			if err != nil {
				return err
			}
			if done {
				break
			}
			continue
		}
		if l.pos >= len(l.src) {
			if len(l.open) > 0 {
				o := l.open[len(l.open)-1]
				return l.errorf(o.line, o.col, "'%s' was never closed", o.text)
			}
			l.endLine()
			break
		}
		c := l.peek(0)
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			l.advance(1)
		case c == '#':
			for l.pos < len(l.src) && l.peek(0) != '\n' {
				l.advance(1)
			}
		case c == '\\':
			if l.peek(1) != '\n' {
				return l.errorf(l.line, l.col, "unexpected character after line continuation character")
			}
			l.advance(2)
			if l.pos >= len(l.src) {
				return l.errorf(l.line, l.col, "unexpected EOF while parsing")
			}
		case c == '\n':
			l.advance(1)
			if len(l.open) == 0 {
				l.endLine()
			}
		case c == '"' || c == '\'':
			if err := l.lexString(""); err != nil {
				return err
			}
		case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
			if err := l.lexNumber(); err != nil {
				return err
			}
		default:
			r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
			if r == '_' || unicode.IsLetter(r) {
				if err := l.lexName(); err != nil {
					return err
				}
				continue
			}
			if err := l.lexOperator(); err != nil {
				return err
			}
		}
	}
	if l.expectIndent {
		return l.errorf(l.line, l.col, "expected an indented block")
	}
	return nil
}

// beginLine measures the indentation of the next non-blank line and opens a
// statement for it. It reports true at end of input.
func (l *lexer) beginLine() (bool, error) {
	indent := 0
	for l.pos < len(l.src) {
		switch l.peek(0) {
		case ' ':
			indent++
		case '\t':
			indent = (indent/8 + 1) * 8
		case '\f':
			indent = 0
		default:
			goto measured
		}
		l.advance(1)
	}
measured:
	if l.pos >= len(l.src) {
		return true, nil
	}
	switch l.peek(0) {
	case '\n':
		l.advance(1)
		return false, nil
	case '#':
		for l.pos < len(l.src) && l.peek(0) != '\n' {
			l.advance(1)
		}
		return false, nil
	}

	top := l.indents[len(l.indents)-1]
	switch {
	case indent > top:
		if !l.expectIndent {
			return false, l.errorf(l.line, l.col, "unexpected indent")
		}
		l.indents = append(l.indents, indent)
	case l.expectIndent:
		return false, l.errorf(l.line, l.col, "expected an indented block")
	case indent < top:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > indent {
			l.indents = l.indents[:len(l.indents)-1]
		}
		if l.indents[len(l.indents)-1] != indent {
			return false, l.errorf(l.line, l.col, "unindent does not match any outer indentation level")
		}
	}
	l.expectIndent = false
	l.atLineStart = false
	l.cur = &statement{indent: indent, line: l.line}
	return false, nil
}

// endLine closes the current logical line. A line ending in ':' opens a
// block, so the next line has to be indented.
func (l *lexer) endLine() {
	l.flush()
	l.atLineStart = true
	l.expectIndent = l.lastColon
	l.lastColon = false
}

func (l *lexer) flush() {
	if l.cur != nil && len(l.cur.tokens) > 0 {
		l.stmts = append(l.stmts, *l.cur)
	}
	l.cur = nil
}

func (l *lexer) emit(t token) {
	if l.cur == nil {
		l.cur = &statement{indent: l.indents[len(l.indents)-1], line: t.line}
	}
	l.cur.tokens = append(l.cur.tokens, t)
	l.lastColon = t.is(tokOp, ":")
}

func (l *lexer) lexName() error {
	start, line, col := l.pos, l.line, l.col
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.advance(size)
	}
	name := l.src[start:l.pos]
	if q := l.peek(0); (q == '"' || q == '\'') && isStringPrefix(name) {
		return l.lexString(name)
	}
	l.emit(token{kind: tokName, text: name, line: line, col: col})
	return nil
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func (l *lexer) lexOperator() error {
	line, col := l.line, l.col
	for _, op := range operators {
		if !strings.HasPrefix(l.src[l.pos:], op) {
			continue
		}
		l.advance(len(op))
		t := token{kind: tokOp, text: op, line: line, col: col}
		switch op {
		case "(", "[", "{":
			l.open = append(l.open, t)
		case ")", "]", "}":
			if len(l.open) == 0 {
				return l.errorf(line, col, "unmatched '%s'", op)
			}
			o := l.open[len(l.open)-1]
			if closers[o.text] != op {
				return l.errorf(line, col, "closing parenthesis '%s' does not match opening parenthesis '%s' on line %d", op, o.text, o.line)
			}
			l.open = l.open[:len(l.open)-1]
		case ";":
			if len(l.open) == 0 {
				indent := l.indents[len(l.indents)-1]
				if l.cur != nil {
					indent = l.cur.indent
				}
				l.flush()
				l.cur = &statement{indent: indent, line: l.line, cont: true}
				return nil
			}
		}
		l.emit(t)
		return nil
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return l.errorf(line, col, "invalid character %q (U+%04X)", r, r)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *lexer) lexNumber() error {
	start, line, col := l.pos, l.line, l.col
	invalid := func(what string) error {
		return l.errorf(line, col, "invalid %s literal", what)
	}
	digits := func(ok func(byte) bool) string {
		begin := l.pos
		for ok(l.peek(0)) || (l.peek(0) == '_' && ok(l.peek(1))) {
			l.advance(1)
		}
		return l.src[begin:l.pos]
	}

	if l.peek(0) == '0' {
		base, what, ok := 0, "", func(byte) bool { return false }
		switch l.peek(1) {
		case 'x', 'X':
			base, what, ok = 16, "hexadecimal", isHexDigit
		case 'o', 'O':
			base, what, ok = 8, "octal", func(c byte) bool { return c >= '0' && c <= '7' }
		case 'b', 'B':
			base, what, ok = 2, "binary", func(c byte) bool { return c == '0' || c == '1' }
		}
		if base != 0 {
			l.advance(2)
			if l.peek(0) == '_' {
				l.advance(1)
			}
			ds := digits(ok)
			if ds == "" || isNameByte(l.peek(0)) {
				return invalid(what)
			}
			n, _ := new(big.Int).SetString(strings.ReplaceAll(ds, "_", ""), base)
			l.emit(token{kind: tokNumber, text: l.src[start:l.pos], val: BigIntValue(n), line: line, col: col})
			return nil
		}
	}

	intPart := digits(isDigit)
	isFloat := false
	if l.peek(0) == '.' {
		isFloat = true
		l.advance(1)
		digits(isDigit)
	}
	if c := l.peek(0); c == 'e' || c == 'E' {
		off := 1
		if s := l.peek(1); s == '+' || s == '-' {
			off = 2
		}
		if isDigit(l.peek(off)) {
			isFloat = true
			l.advance(off)
			digits(isDigit)
		}
	}
	text := l.src[start:l.pos]
	clean := strings.ReplaceAll(text, "_", "")

	if c := l.peek(0); c == 'j' || c == 'J' {
		l.advance(1)
		l.emit(token{kind: tokNumber, text: l.src[start:l.pos], val: Value{Kind: KindComplex, Str: clean + "j"}, line: line, col: col})
		return nil
	}
	if isNameByte(l.peek(0)) {
		return invalid("decimal")
	}
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil && !isRangeError(err) {
			return invalid("float")
		}
		l.emit(token{kind: tokNumber, text: text, val: FloatValue(f), line: line, col: col})
		return nil
	}
	if len(intPart) > 1 && intPart[0] == '0' && strings.Trim(intPart, "0_") != "" {
		return l.errorf(line, col, "leading zeros in decimal integer literals are not permitted")
	}
	n, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return invalid("decimal")
	}
	l.emit(token{kind: tokNumber, text: text, val: BigIntValue(n), line: line, col: col})
	return nil
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func isNameByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// lexString reads a string literal starting at the opening quote. prefix
// has already been consumed.
func (l *lexer) lexString(prefix string) error {
	line, col := l.line, l.col-len(prefix)
	lower := strings.ToLower(prefix)
	raw := strings.Contains(lower, "r")
	isBytes := strings.Contains(lower, "b")
	quote := l.src[l.pos : l.pos+1]
	if strings.HasPrefix(l.src[l.pos:], quote+quote+quote) {
		quote = quote + quote + quote
	}
	l.advance(len(quote))

	var sb strings.Builder
	note := ""
	for {
		if l.pos >= len(l.src) {
			if len(quote) == 3 {
				return l.errorf(line, col, "unterminated triple-quoted string literal")
			}
			return l.errorf(line, col, "unterminated string literal")
		}
		if strings.HasPrefix(l.src[l.pos:], quote) {
			l.advance(len(quote))
			break
		}
		c := l.peek(0)
		if c == '\n' && len(quote) == 1 {
			return l.errorf(line, col, "unterminated string literal")
		}
		if c == '\\' {
			if raw {
				sb.WriteByte('\\')
				l.advance(1)
				if l.pos < len(l.src) {
					r, size := utf8.DecodeRuneInString(l.src[l.pos:])
					sb.WriteRune(r)
					l.advance(size)
				}
				continue
			}
			n, err := l.lexEscape(&sb, isBytes)
			if err != nil {
				return err
			}
			if n != "" {
				note = n
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if isBytes && r >= 0x80 {
			return l.errorf(l.line, l.col, "bytes can only contain ASCII literal characters")
		}
		sb.WriteRune(r)
		l.advance(size)
	}

	t := token{kind: tokString, text: prefix + quote, line: line, col: col, note: note}
	t.fstring = strings.Contains(lower, "f")
	if isBytes {
		t.val = BytesValue(sb.String())
	} else {
		t.val = StrValue(sb.String())
	}
	l.emit(t)
	return nil
}

var simpleEscapes = map[byte]byte{
	'\\': '\\', '\'': '\'', '"': '"', 'a': '\a', 'b': '\b',
	'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v',
}

// lexEscape decodes one backslash escape into sb. A non-empty note marks an
// escape that is valid but not decoded.
func (l *lexer) lexEscape(sb *strings.Builder, isBytes bool) (string, error) {
	line, col := l.line, l.col
	l.advance(1)
	if l.pos >= len(l.src) {
		return "", l.errorf(line, col, "unterminated string literal")
	}
	c := l.peek(0)
	if b, ok := simpleEscapes[c]; ok {
		sb.WriteByte(b)
		l.advance(1)
		return "", nil
	}
	writeCode := func(code rune) error {
		if isBytes {
			if code > 0xFF {
				return l.errorf(line, col, "invalid octal escape sequence in bytes")
			}
			sb.WriteByte(byte(code))
			return nil
		}
		if code >= 0xD800 && code <= 0xDFFF {
			sb.Write(appendSurrogate(nil, code))
			return nil
		}
		sb.WriteRune(code)
		return nil
	}
	hex := func(n int, name string) (rune, error) {
		if l.pos+1+n > len(l.src) {
			return 0, l.errorf(line, col, "truncated %s escape", name)
		}
		digits := l.src[l.pos+1 : l.pos+1+n]
		v, err := strconv.ParseUint(digits, 16, 32)
		if err != nil {
			return 0, l.errorf(line, col, "truncated %s escape", name)
		}
		l.advance(1 + n)
		return rune(v), nil
	}

	switch {
	case c == '\n':
		l.advance(1)
		return "", nil
	case c >= '0' && c <= '7':
		v := rune(0)
		for i := 0; i < 3 && l.peek(0) >= '0' && l.peek(0) <= '7'; i++ {
			v = v*8 + rune(l.peek(0)-'0')
			l.advance(1)
		}
		return "", writeCode(v)
	case c == 'x':
		v, err := hex(2, `\xXX`)
		if err != nil {
			return "", err
		}
		return "", writeCode(v)
	case c == 'u' && !isBytes:
		v, err := hex(4, `\uXXXX`)
		if err != nil {
			return "", err
		}
		return "", writeCode(v)
	case c == 'U' && !isBytes:
		v, err := hex(8, `\UXXXXXXXX`)
		if err != nil {
			return "", err
		}
		if v > unicode.MaxRune {
			return "", l.errorf(line, col, "illegal Unicode character")
		}
		return "", writeCode(v)
	case c == 'N' && !isBytes && l.peek(1) == '{':
		end := strings.IndexByte(l.src[l.pos:], '}')
		if end < 0 || strings.ContainsRune(l.src[l.pos:l.pos+end], '\n') {
			return "", l.errorf(line, col, `malformed \N character escape`)
		}
		name := l.src[l.pos+2 : l.pos+end]
		l.advance(end + 1)
		if r, ok := lookupRuneName(name); ok {
			sb.WriteRune(r)
			return "", nil
		}
		return fmt.Sprintf(`\N{%s} escape`, name), nil
	}
	// Unrecognised escapes keep the backslash.
	sb.WriteByte('\\')
	return "", nil
}

var (
	runeNamesOnce sync.Once
	runeNames     map[string]rune
)

// lookupRuneName resolves the character name of a \N{...} escape. Names
// match without regard to case. Aliases are not known.
func lookupRuneName(name string) (rune, bool) {
	name = strings.ToUpper(name)
	if hex, ok := strings.CutPrefix(name, "CJK UNIFIED IDEOGRAPH-"); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || !unicode.Is(unicode.Ideographic, rune(v)) {
			return 0, false
		}
		return rune(v), true
	}
	runeNamesOnce.Do(func() {
		runeNames = make(map[string]rune)
		for r := rune(0); r <= unicode.MaxRune; r++ {
			if n := runenames.Name(r); n != "" && !strings.HasPrefix(n, "<") {
				runeNames[n] = r
			}
		}
	})
	r, ok := runeNames[name]
	return r, ok
}
