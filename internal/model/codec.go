package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/nopg/internal/ir"
)

// Validator references a custom validation rule. Rules are never stored
// as executable code: Lang "cue" holds a CUE constraint evaluated in a
// sandbox, Lang "builtin" names a Go predicate registered with the
// validator at startup.
type Validator struct {
	Lang   string
	Source string
}

const (
	ValidatorCUE     = "cue"
	ValidatorBuiltin = "builtin"
)

// String is the stored form.
func (v Validator) String() string {
	return v.Lang + ":" + v.Source
}

// Display is the form shown to callers: a CUE rule as written, a builtin
// as "builtin:<name>". ParseValidator reads either back.
func (v Validator) Display() string {
	if v.Lang != ValidatorCUE || hasValidatorPrefix(v.Source) {
		return v.String()
	}
	return v.Source
}

func hasValidatorPrefix(s string) bool {
	return strings.HasPrefix(s, ValidatorCUE+":") || strings.HasPrefix(s, ValidatorBuiltin+":")
}

// IsZero reports whether no rule is set.
func (v Validator) IsZero() bool {
	return strings.TrimSpace(v.Source) == ""
}

// ParseValidator reads the stored form. Text without a known prefix is a
// CUE rule.
func ParseValidator(s string) Validator {
	for _, lang := range []string{ValidatorCUE, ValidatorBuiltin} {
		if rest, ok := strings.CutPrefix(s, lang+":"); ok {
			return Validator{Lang: lang, Source: rest}
		}
	}
	return Validator{Lang: ValidatorCUE, Source: s}
}

// timeLayouts are the textual timestamp forms drivers hand back.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// encode converts an in-memory attribute value into its column value.
// ok is false when the value is absent or falsy and should be skipped.
func encode(a Attribute, v any) (out any, ok bool, err error) {
	if v == nil {
		return nil, false, nil
	}
	switch a.Codec {
	case CodecText:
		s, isStr := v.(string)
		if !isStr {
			return nil, false, fmt.Errorf("attribute %s: expected string, got %T", a.Name, v)
		}
		return s, s != "", nil
	case CodecJSON, CodecBag:
		s, err := ir.CanonicalString(v)
		if err != nil {
			return nil, false, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return s, true, nil
	case CodecBytes:
		b, isBytes := v.([]byte)
		if !isBytes {
			if s, isStr := v.(string); isStr {
				b = []byte(s)
			} else {
				return nil, false, fmt.Errorf("attribute %s: expected bytes, got %T", a.Name, v)
			}
		}
		return b, len(b) > 0, nil
	case CodecTime:
		t, err := toTime(v)
		if err != nil {
			return nil, false, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return t, !t.IsZero(), nil
	case CodecInt:
		n, err := ToInt(v)
		if err != nil {
			return nil, false, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return n, true, nil
	case CodecValidator:
		switch r := v.(type) {
		case Validator:
			return r.String(), !r.IsZero(), nil
		case string:
			return ParseValidator(r).String(), strings.TrimSpace(r) != "", nil
		}
		return nil, false, fmt.Errorf("attribute %s: expected validator, got %T", a.Name, v)
	}
	return nil, false, fmt.Errorf("attribute %s: unknown codec %d", a.Name, a.Codec)
}

// decode converts a raw column value into the in-memory attribute value.
func decode(a Attribute, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch a.Codec {
	case CodecText:
		return toString(raw), nil
	case CodecJSON:
		return ir.Decode(toBytes(raw))
	case CodecBag:
		return ir.DecodeObject(toBytes(raw))
	case CodecBytes:
		return append([]byte(nil), toBytes(raw)...), nil
	case CodecTime:
		return toTime(raw)
	case CodecInt:
		return ToInt(raw)
	case CodecValidator:
		s := toString(raw)
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return ParseValidator(s), nil
	}
	return nil, fmt.Errorf("attribute %s: unknown codec %d", a.Name, a.Codec)
}

// sameEncoded compares two encoded column values.
func sameEncoded(a, b any) bool {
	switch x := a.(type) {
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	default:
		return a == b
	}
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func toBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		// Drivers that decode JSON columns themselves hand back Go values.
		s, err := ir.CanonicalString(v)
		if err != nil {
			return []byte(fmt.Sprint(v))
		}
		return []byte(s)
	}
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string, []byte:
		s := toString(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
	}
	return time.Time{}, fmt.Errorf("expected timestamp, got %T", raw)
}

// ToInt reads an integer from a column or caller value.
func ToInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Int64()
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case string, []byte:
		return strconv.ParseInt(toString(v), 10, 64)
	}
	return 0, fmt.Errorf("expected integer, got %T", raw)
}
