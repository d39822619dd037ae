// Package jcs implements RFC 8785 JSON Canonicalization Scheme: stable key
// ordering and minimal number encoding, sufficient to produce a
// deterministic byte string for signature verification over a JSON object.
//
// No example in the retrieved corpus implements JCS or an equivalent
// canonical-JSON codec. This package is therefore standard-library only;
// see DESIGN.md for the no-suitable-library justification.
package jcs

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Canonicalize renders v (built from map[string]interface{}, []interface{},
// string, float64, int, int64, bool, nil) into RFC 8785 canonical bytes.
// Any other type, including json.Number and pointers, is an error.
func Canonicalize(v interface{}) ([]byte, error) {
	var b strings.Builder
	if err := encode(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encode(b *strings.Builder, v interface{}) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		encodeString(b, t)
	case float64:
		encodeNumber(b, t)
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case map[string]interface{}:
		return encodeObject(b, t)
	case []interface{}:
		return encodeArray(b, t)
	default:
		return fmt.Errorf("jcs: unsupported type %T", v)
	}
	return nil
}

func encodeObject(b *strings.Builder, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodeString(b, k)
		b.WriteByte(':')
		if err := encode(b, m[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func encodeArray(b *strings.Builder, a []interface{}) error {
	b.WriteByte('[')
	for i, e := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := encode(b, e); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

// encodeString writes a JSON string per RFC 8785 §3.2.2.2 (escape the
// minimal required set; everything else passes through as UTF-8).
func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

// encodeNumber renders float64 using the minimal ECMAScript-compatible form
// required by RFC 8785 §3.2.2.3; integral values drop the fractional part.
func encodeNumber(b *strings.Builder, f float64) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		b.WriteString("null")
		return
	}
	if f == 0 {
		b.WriteString("0")
		return
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return
	}
	// ECMAScript writes the exponent without zero padding ("1e-7", not "1e-07").
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	b.WriteString(mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0"))
}
