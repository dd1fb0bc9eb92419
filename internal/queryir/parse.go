package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/ir"
	"github.com/roach88/nopg/internal/model"
)

// Operators recognized as the first element of an array predicate.
const (
	OpAnd  = "AND"
	OpOr   = "OR"
	OpBind = "BIND"
)

// Parse converts caller input into a predicate tree.
//
// Accepted input:
//   - nil: True
//   - Predicate: returned unchanged
//   - map[string]any: one Equals per key (sorted), combined per mode
//   - []any{"AND"|"OR", expr...}: recursive, nested maps use MatchAll
//   - []any{"BIND", field, fn, args...}: Bind
//   - *model.Entity: Identity on its id
//
// mode only affects the top-level flat map.
func Parse(input any, mode MatchMode) (Predicate, error) {
	if mode == "" {
		mode = MatchAll
	}
	switch v := input.(type) {
	case nil:
		return True{}, nil
	case Predicate:
		return v, nil
	case map[string]any:
		return parseObject(v, mode), nil
	case *model.Entity:
		if v == nil {
			return True{}, nil
		}
		if v.ID() == "" {
			return nil, errs.Invalid("cannot query by %s without an id", v.Kind())
		}
		return Identity{ID: v.ID()}, nil
	case []any:
		return parseArray(v)
	default:
		return nil, errs.Invalid("unsupported predicate type %T", input)
	}
}

func parseObject(obj map[string]any, mode MatchMode) Predicate {
	if len(obj) == 0 {
		return True{}
	}
	preds := make([]Predicate, 0, len(obj))
	for _, k := range ir.SortedKeys(obj) {
		preds = append(preds, Equals{Field: ParseField(k), Value: obj[k]})
	}
	if len(preds) == 1 {
		return preds[0]
	}
	if mode == MatchAny {
		return Or{Predicates: preds}
	}
	return And{Predicates: preds}
}

func parseArray(arr []any) (Predicate, error) {
	if len(arr) == 0 {
		return nil, errs.Invalid("empty predicate array")
	}
	op, ok := arr[0].(string)
	if !ok {
		return nil, errs.Invalid("predicate array must start with an operator, got %T", arr[0])
	}
	switch strings.ToUpper(op) {
	case OpAnd, OpOr:
		children := make([]Predicate, 0, len(arr)-1)
		for i, sub := range arr[1:] {
			p, err := Parse(sub, MatchAll)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", strings.ToUpper(op), i, err)
			}
			children = append(children, p)
		}
		if strings.ToUpper(op) == OpAnd {
			return And{Predicates: children}, nil
		}
		return Or{Predicates: children}, nil
	case OpBind:
		return parseBind(arr)
	}
	return nil, errs.Invalid("unknown predicate operator %q", op)
}

func parseBind(arr []any) (Predicate, error) {
	if len(arr) < 3 {
		return nil, errs.Invalid("BIND needs a field and a function")
	}
	field, ok := arr[1].(string)
	if !ok || field == "" {
		return nil, errs.Invalid("BIND field must be a non-empty string, got %v", arr[1])
	}
	var fn BindFunc
	switch f := arr[2].(type) {
	case BindFunc:
		fn = f
	case func(any, ...any) bool:
		fn = f
	case func(any) bool:
		fn = func(v any, _ ...any) bool { return f(v) }
	default:
		return nil, errs.Invalid("BIND function has unsupported type %T", arr[2])
	}
	if fn == nil {
		return nil, errs.Invalid("BIND function is nil")
	}
	return Bind{Field: ParseField(field), Fn: fn, Args: append([]any(nil), arr[3:]...)}, nil
}

// HasBind reports whether any branch of p needs post-filtering.
func HasBind(p Predicate) bool {
	switch v := p.(type) {
	case Bind:
		return true
	case And:
		for _, c := range v.Predicates {
			if HasBind(c) {
				return true
			}
		}
	case Or:
		for _, c := range v.Predicates {
			if HasBind(c) {
				return true
			}
		}
	}
	return false
}
