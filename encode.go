package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// The document is written with the separators and escaping of Python's
// json.dumps defaults: ", " and ": ", every non-ASCII or control character
// as \uXXXX. Downstream harnesses compare against documents produced that
// way, so the bytes have to match, not just the values.

// AppendJSON appends the result as a JSON object, one key per vector.
func (r *Result) AppendJSON(dst []byte) ([]byte, error) {
	dst = append(dst, '{')
	for i, vec := range r.Vectors {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = appendString(dst, vec.Name)
		dst = append(dst, ": "...)
		var err error
		if dst, err = appendValue(dst, vec.Value, vec.Name); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

// encodeDocument renders the result followed by a newline and checks that
// the bytes decode back to the same values before handing them out.
func encodeDocument(r *Result) ([]byte, error) {
	doc, err := r.AppendJSON(nil)
	if err != nil {
		return nil, err
	}
	doc = append(doc, '\n')
	if err := verifyDocument(doc, r); err != nil {
		return nil, err
	}
	return doc, nil
}

func appendValue(dst []byte, v Value, path string) ([]byte, error) {
	switch v.Kind {
	case KindNone:
		return append(dst, "null"...), nil
	case KindBool:
		return strconv.AppendBool(dst, v.Bool), nil
	case KindInt:
		return v.Int.Append(dst, 10), nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return nil, &SerializationError{Path: path, Type: "float",
				Reason: fmt.Sprintf("out of range float value %s is not valid JSON", pyFloatRepr(v.Float))}
		}
		return append(dst, pyFloatRepr(v.Float)...), nil
	case KindStr:
		return appendString(dst, v.Str), nil
	case KindList, KindTuple:
		dst = append(dst, '[')
		for i, it := range v.Items {
			if i > 0 {
				dst = append(dst, ", "...)
			}
			var err error
			if dst, err = appendValue(dst, it, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case KindDict:
		dst = append(dst, '{')
		for i, it := range v.Dict {
			key, err := dictKey(it.Key, path)
			if err != nil {
				return nil, err
			}
			if i > 0 {
				dst = append(dst, ", "...)
			}
			dst = appendString(dst, key)
			dst = append(dst, ": "...)
			if dst, err = appendValue(dst, it.Value, fmt.Sprintf("%s[%s]", path, strconv.Quote(key))); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	case KindOpaque:
		reason := ""
		if v.Note != "" {
			reason = fmt.Sprintf("value of type %s is not JSON serializable (%s)", v.Str, v.Note)
		}
		return nil, &SerializationError{Path: path, Type: v.Str, Reason: reason}
	}
	return nil, &SerializationError{Path: path, Type: v.TypeName()}
}

// dictKey converts a dict key to an object key: str as is, numbers in their
// literal form, True/False/None as true/false/null.
func dictKey(k Value, path string) (string, error) {
	switch k.Kind {
	case KindStr:
		return k.Str, nil
	case KindInt:
		return k.Int.String(), nil
	case KindBool:
		return strconv.FormatBool(k.Bool), nil
	case KindNone:
		return "null", nil
	case KindFloat:
		if math.IsNaN(k.Float) || math.IsInf(k.Float, 0) {
			return "", &SerializationError{Path: path, Type: "float",
				Reason: fmt.Sprintf("out of range float key %s is not valid JSON", pyFloatRepr(k.Float))}
		}
		return pyFloatRepr(k.Float), nil
	}
	return "", &SerializationError{Path: path, Type: k.TypeName(),
		Reason: fmt.Sprintf("keys must be str, int, float, bool or None, not %s", k.TypeName())}
}

const hexDigits = "0123456789abcdef"

func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if c, ok := decodeSurrogate(s[i:]); ok && r == utf8.RuneError {
			r, size = c, 3
		}
		i += size
		switch r {
		case '"':
			dst = append(dst, `\"`...)
		case '\\':
			dst = append(dst, `\\`...)
		case '\n':
			dst = append(dst, `\n`...)
		case '\r':
			dst = append(dst, `\r`...)
		case '\t':
			dst = append(dst, `\t`...)
		case '\b':
			dst = append(dst, `\b`...)
		case '\f':
			dst = append(dst, `\f`...)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				dst = append(dst, byte(r))
			case r > 0xFFFF:
				hi, lo := utf16.EncodeRune(r)
				dst = appendEscape(appendEscape(dst, hi), lo)
			default:
				dst = appendEscape(dst, r)
			}
		}
	}
	return append(dst, '"')
}

func appendEscape(dst []byte, r rune) []byte {
	return append(dst, '\\', 'u',
		hexDigits[r>>12&0xF], hexDigits[r>>8&0xF], hexDigits[r>>4&0xF], hexDigits[r&0xF])
}

// pyFloatRepr formats f as the shortest string that round-trips, switching
// to exponent notation below 1e-4 and from 1e16 on.
func pyFloatRepr(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sign := ""
	if f < 0 {
		sign, f = "-", -f
	}
	// d.ddddde±XX
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mant, ".", "", 1)

	if exp < -4 || exp >= 16 {
		out := digits[:1]
		if len(digits) > 1 {
			out += "." + digits[1:]
		}
		expSign := "+"
		if exp < 0 {
			expSign, exp = "-", -exp
		}
		return fmt.Sprintf("%s%se%s%02d", sign, out, expSign, exp)
	}
	if exp < 0 {
		return sign + "0." + strings.Repeat("0", -exp-1) + digits
	}
	if len(digits) <= exp+1 {
		return sign + digits + strings.Repeat("0", exp+1-len(digits)) + ".0"
	}
	return sign + digits[:exp+1] + "." + digits[exp+1:]
}
