package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Decode parses JSON into generic values. Integral numbers come back as
// int64, everything else numeric as float64.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return Normalize(v), nil
}

// DecodeObject parses a JSON object. Empty input and JSON null yield an
// empty map.
func DecodeObject(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	switch obj := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return obj, nil
	default:
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
}

// Normalize rewrites json.Number leaves to int64 or float64, recursively.
func Normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return string(val)
	case []any:
		for i := range val {
			val[i] = Normalize(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = Normalize(val[k])
		}
		return val
	default:
		return v
	}
}

// IsNumeric reports whether v is a native numeric value. Numeric-looking
// strings are not numeric.
func IsNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return true
	}
	return false
}

// Number converts a native numeric value to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Integer returns v as an exact int64 when it is an integer kind, an
// integral json.Number, or a float holding an integer in int64 range.
// Unsigned values above math.MaxInt64 are not representable.
func Integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	case float32:
		return floatInteger(float64(n))
	case float64:
		return floatInteger(n)
	}
	return 0, false
}

func floatInteger(f float64) (int64, bool) {
	// -2^63 is exact; 2^63 is not an int64.
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// NumericValue is the value a relational numeric cast would produce: native
// numbers as-is, strings parsed as decimal. Anything else has no numeric value.
func NumericValue(v any) (float64, bool) {
	if f, ok := Number(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Text renders v the way a JSON text extraction does: strings unquoted,
// numbers in shortest form, booleans as true/false, containers as canonical
// JSON. nil has no text rendering.
func Text(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	}
	s, err := CanonicalString(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return s, true
}
