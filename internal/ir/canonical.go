package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a decoded JSON value.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Numbers are written in their shortest round-trip form, so 2, 2.0 and
//     json.Number("2.0") all encode as 2
//
// Strings and keys are written byte for byte. Two values are structurally
// equal iff their canonical encodings are equal.
func MarshalCanonical(v any) ([]byte, error) {
	return canonicalWriter{}.marshal(v)
}

// canonicalWriter encodes canonical JSON. nfc normalizes strings and keys
// first; it is only for comparisons and never for stored values.
type canonicalWriter struct {
	nfc bool
}

func (w canonicalWriter) marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalString is MarshalCanonical returning a string.
func CanonicalString(v any) (string, error) {
	b, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (w canonicalWriter) write(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return w.writeString(buf, val)
	case json.Number:
		s, err := formatJSONNumber(val)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, _ := Number(val)
		s, err := formatFloat(f, val)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case json.RawMessage:
		decoded, err := Decode(val)
		if err != nil {
			return err
		}
		return w.write(buf, decoded)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := w.write(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range SortedKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := w.writeString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := w.write(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		// Typed slices, maps and structs go through encoding/json once and are
		// re-read as generic JSON.
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("unsupported type for canonical JSON: %T: %w", v, err)
		}
		decoded, err := Decode(raw)
		if err != nil {
			return err
		}
		return w.write(buf, decoded)
	}
	return nil
}

// writeString writes s without HTML escaping.
func (w canonicalWriter) writeString(buf *bytes.Buffer, s string) error {
	if w.nfc {
		s = norm.NFC.String(s)
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// json.Encoder adds a trailing newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

func formatJSONNumber(n json.Number) (string, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", string(n), err)
	}
	return formatFloat(f, n)
}

func formatFloat(f float64, orig any) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number is not valid JSON: %v", orig)
	}
	switch n := orig.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return strconv.FormatFloat(f, 'e', -1, 64), nil
}

// SortedKeys returns the keys of m ordered by UTF-16 code units.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareUTF16(keys[i], keys[j]) < 0
	})
	return keys
}

func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}

// Equal reports whether a and b are structurally equal JSON values. Key order
// and numeric representation do not matter. Values that cannot be encoded
// are never equal.
func Equal(a, b any) bool {
	return canonicalWriter{}.equal(a, b)
}

// EqualNFC is Equal with strings and keys compared after NFC
// normalization, so "e\u0301" equals "\u00e9". Use it to compare
// hand-written expectations with stored values.
func EqualNFC(a, b any) bool {
	return canonicalWriter{nfc: true}.equal(a, b)
}

func (w canonicalWriter) equal(a, b any) bool {
	ca, err := w.marshal(a)
	if err != nil {
		return false
	}
	cb, err := w.marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}
