package main

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

type Kind string

const (
	KindNone    = Kind("NoneType")
	KindBool    = Kind("bool")
	KindInt     = Kind("int") // arbitrary precision
	KindFloat   = Kind("float")
	KindComplex = Kind("complex")
	KindStr     = Kind("str")
	KindBytes   = Kind("bytes")
	KindList    = Kind("list")
	KindTuple   = Kind("tuple")
	KindDict    = Kind("dict")
	KindSet     = Kind("set")
	// Special kinds
	KindOpaque = Kind("opaque") // functions, classes, modules and anything not evaluated
	KindImport = Kind("import") // name bound by "from m import n", resolved on lookup
)

// Value is a module-level value read from a reference module.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   *big.Int
	Float float64
	Str   string // str text, bytes contents, or the type name of an opaque value
	Items []Value
	Dict  []DictItem

	// Note explains why an opaque value was not evaluated.
	Note string

	ref   *importRef
	ident *identity // lists, dicts and sets; shared by every name bound to the same object
}

// identity tells mutable objects apart: two names holding values with the
// same identity see each other's changes.
type identity struct{ _ byte }

type DictItem struct {
	Key   Value
	Value Value
}

type importRef struct {
	module string
	name   string
}

func NoneValue() Value { return Value{Kind: KindNone} }
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: big.NewInt(i)} }
func BigIntValue(i *big.Int) Value { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func StrValue(s string) Value { return Value{Kind: KindStr, Str: s} }
func BytesValue(b string) Value { return Value{Kind: KindBytes, Str: b} }

func ListValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindList, Items: items, ident: new(identity)}
}

func TupleValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindTuple, Items: items}
}

func SetValue(items ...Value) Value { return Value{Kind: KindSet, Items: items, ident: new(identity)} }

// sequenceValue builds a new list or tuple.
func sequenceValue(kind Kind, items []Value) Value {
	if kind == KindList {
		return ListValue(items...)
	}
	return TupleValue(items...)
}

// DictValue builds a dict the way a dict display does: a repeated key keeps
// its first position and takes the last value.
func DictValue(items ...DictItem) (Value, error) {
	out := make([]DictItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		key, ok := it.Key.hashKey()
		if !ok {
			return Value{}, fmt.Errorf("unhashable type: %s", it.Key.TypeName())
		}
		if i, seen := index[key]; seen {
			out[i].Value = it.Value
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return Value{Kind: KindDict, Dict: out, ident: new(identity)}, nil
}

// OpaqueValue is a value of the given type name that cannot be evaluated.
func OpaqueValue(typeName, note string) Value {
	return Value{Kind: KindOpaque, Str: typeName, Note: note}
}

func importValue(module, name string) Value {
	return Value{Kind: KindImport, ref: &importRef{module: module, name: name}}
}

// TypeName is the name of the value's type as the reference module sees it.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindOpaque:
		return v.Str
	case KindImport:
		return "import"
	default:
		return string(v.Kind)
	}
}

// Len is the number of elements in a container, or -1.
func (v Value) Len() int {
	switch v.Kind {
	case KindList, KindTuple, KindSet:
		return len(v.Items)
	case KindDict:
		return len(v.Dict)
	case KindStr, KindBytes:
		return len(v.Str)
	}
	return -1
}

func (v Value) isNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat || v.Kind == KindBool
}

func (v Value) isSequence() bool {
	return v.Kind == KindList || v.Kind == KindTuple
}

// float converts a numeric value to float64.
func (v Value) float() float64 {
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindInt:
		f, _ := new(big.Float).SetInt(v.Int).Float64()
		return f
	}
	return math.NaN()
}

// bigInt converts an int or bool to *big.Int.
func (v Value) bigInt() *big.Int {
	if v.Kind == KindBool {
		if v.Bool {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	}
	return v.Int
}

// collect adds the identities of every mutable object reachable from v.
func (v Value) collect(into map[*identity]bool) {
	if v.ident != nil {
		into[v.ident] = true
	}
	for _, it := range v.Items {
		it.collect(into)
	}
	for _, it := range v.Dict {
		it.Key.collect(into)
		it.Value.collect(into)
	}
}

// reaches reports whether any object in ids is reachable from v.
func (v Value) reaches(ids map[*identity]bool) bool {
	if ids[v.ident] {
		return true
	}
	for _, it := range v.Items {
		if it.reaches(ids) {
			return true
		}
	}
	for _, it := range v.Dict {
		if it.Key.reaches(ids) || it.Value.reaches(ids) {
			return true
		}
	}
	return false
}

func (v Value) mutable() bool {
	ids := make(map[*identity]bool)
	v.collect(ids)
	return len(ids) > 0
}

// A str may hold lone surrogates, which UTF-8 cannot encode. They are kept
// as the three bytes UTF-8 would use for the code point.
func appendSurrogate(b []byte, r rune) []byte {
	return append(b, 0xE0|byte(r>>12), 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
}

// decodeSurrogate reads a surrogate written by appendSurrogate.
func decodeSurrogate(s string) (rune, bool) {
	if len(s) < 3 || s[0] != 0xED || s[1] < 0xA0 || s[1] > 0xBF || s[2]&0xC0 != 0x80 {
		return 0, false
	}
	return rune(s[0]&0x0F)<<12 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), true
}

// hashKey returns a key that is equal for values that compare equal as dict
// keys (1, 1.0 and True collide). Mutable containers are not hashable.
func (v Value) hashKey() (string, bool) {
	switch v.Kind {
	case KindNone:
		return "N", true
	case KindBool, KindInt:
		return "i:" + v.bigInt().String(), true
	case KindFloat:
		if !math.IsInf(v.Float, 0) && !math.IsNaN(v.Float) && v.Float == math.Trunc(v.Float) {
			i, _ := big.NewFloat(v.Float).Int(nil)
			return "i:" + i.String(), true
		}
		return "f:" + strconv.FormatFloat(v.Float, 'g', -1, 64), true
	case KindComplex:
		return "c:" + v.Str, true
	case KindStr:
		return "s:" + v.Str, true
	case KindBytes:
		return "b:" + v.Str, true
	case KindTuple:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			k, ok := it.hashKey()
			if !ok {
				return "", false
			}
			parts[i] = k
		}
		return "t(" + strings.Join(parts, ",") + ")", true
	}
	return "", false
}

// Equal reports deep equality. Numbers compare by value across int, float
// and bool like dict keys do; containers must have the same kind.
func (v Value) Equal(w Value) bool {
	if v.isNumber() && w.isNumber() {
		if v.Kind == KindFloat || w.Kind == KindFloat {
			return v.float() == w.float()
		}
		return v.bigInt().Cmp(w.bigInt()) == 0
	}
	if v.Kind != w.Kind {
		return false
	}
	switch v.Kind {
	case KindNone:
		return true
	case KindStr, KindBytes, KindComplex:
		return v.Str == w.Str
	case KindOpaque:
		return v.Str == w.Str && v.Note == w.Note
	case KindImport:
		return *v.ref == *w.ref
	case KindList, KindTuple, KindSet:
		if len(v.Items) != len(w.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(w.Items[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.Dict) != len(w.Dict) {
			return false
		}
		for i := range v.Dict {
			if !v.Dict[i].Key.Equal(w.Dict[i].Key) || !v.Dict[i].Value.Equal(w.Dict[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case KindNone:
		return "None"
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindInt:
		return v.Int.String()
	case KindFloat:
		return pyFloatRepr(v.Float)
	case KindComplex:
		return v.Str
	case KindStr:
		return strconv.Quote(v.Str)
	case KindBytes:
		return "b" + strconv.Quote(v.Str)
	case KindList, KindTuple, KindSet:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = it.String()
		}
		open, closing := "[", "]"
		switch v.Kind {
		case KindTuple:
			open, closing = "(", ")"
			if len(parts) == 1 {
				closing = ",)"
			}
		case KindSet:
			open, closing = "{", "}"
		}
		return open + strings.Join(parts, ", ") + closing
	case KindDict:
		parts := make([]string, len(v.Dict))
		for i, it := range v.Dict {
			parts[i] = it.Key.String() + ": " + it.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindImport:
		return fmt.Sprintf("<from %s import %s>", v.ref.module, v.ref.name)
	}
	return fmt.Sprintf("<%s>", v.Str)
}
