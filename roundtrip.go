package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// verifyDocument decodes a rendered document with encoding/json and checks
// it against the extracted result: same keys in the same order, same values.
func verifyDocument(doc []byte, r *Result) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return fmt.Errorf("round trip: document does not start with an object: %v", err)
	}
	for i, vec := range r.Vectors {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("round trip: read key %d: %w", i, err)
		}
		if key, _ := tok.(string); key != vec.Name {
			return fmt.Errorf("round trip: key %d is %v, want %q", i, tok, vec.Name)
		}
		var decoded any
		if err := dec.Decode(&decoded); err != nil {
			return fmt.Errorf("round trip: decode %s: %w", vec.Name, err)
		}
		if !compareJSONValues(decoded, vec.Value) {
			return fmt.Errorf("round trip: %s does not decode to the extracted value", vec.Name)
		}
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return fmt.Errorf("round trip: document has trailing keys: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("round trip: trailing data after document")
	}
	return nil
}

// compareJSONValues compares a value decoded with UseNumber against the
// value it was rendered from.
func compareJSONValues(decoded any, v Value) bool {
	switch d := decoded.(type) {
	case nil:
		return v.Kind == KindNone
	case bool:
		return v.Kind == KindBool && v.Bool == d
	case string:
		return v.Kind == KindStr && decodedString(v.Str) == d
	case json.Number:
		switch v.Kind {
		case KindInt:
			n, ok := new(big.Int).SetString(string(d), 10)
			return ok && n.Cmp(v.Int) == 0
		case KindFloat:
			f, err := strconv.ParseFloat(string(d), 64)
			return err == nil && f == v.Float
		}
		return false
	case []any:
		if !v.isSequence() || len(d) != len(v.Items) {
			return false
		}
		for i := range d {
			if !compareJSONValues(d[i], v.Items[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		if v.Kind != KindDict {
			return false
		}
		// Keys that coerce to the same string collapse; the last one wins
		// in the decoded map.
		want := make(map[string]Value, len(v.Dict))
		for _, it := range v.Dict {
			key, err := dictKey(it.Key, "")
			if err != nil {
				return false
			}
			want[decodedString(key)] = it.Value
		}
		if len(d) != len(want) {
			return false
		}
		for key, val := range d {
			w, ok := want[key]
			if !ok || !compareJSONValues(val, w) {
				return false
			}
		}
		return true
	}
	return false
}

// decodedString is s as encoding/json decodes its escaped form: surrogate
// pairs join and lone surrogates become U+FFFD.
func decodedString(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); {
		hi, ok := decodeSurrogate(s[i:])
		if !ok {
			r, size := utf8.DecodeRuneInString(s[i:])
			sb.WriteRune(r)
			i += size
			continue
		}
		i += 3
		if lo, ok := decodeSurrogate(s[i:]); ok && utf16.IsSurrogate(hi) && hi < 0xDC00 && lo >= 0xDC00 {
			sb.WriteRune(utf16.DecodeRune(hi, lo))
			i += 3
			continue
		}
		sb.WriteRune(utf8.RuneError)
	}
	return sb.String()
}
