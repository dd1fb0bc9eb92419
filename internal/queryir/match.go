package queryir

import (
	"time"

	"github.com/roach88/nopg/internal/ir"
	"github.com/roach88/nopg/internal/model"
)

// Match evaluates p against a loaded entity using the same cast rule the
// SQL compiler applies. It is used to post-filter queries containing Bind.
func Match(p Predicate, e *model.Entity) bool {
	switch v := p.(type) {
	case nil, True:
		return true
	case Identity:
		return e.ID() == v.ID
	case Equals:
		actual, ok := fieldValue(e, v.Field)
		return compare(actual, ok, v.Value)
	case And:
		for _, c := range v.Predicates {
			if !Match(c, e) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range v.Predicates {
			if Match(c, e) {
				return true
			}
		}
		return false
	case Bind:
		actual, _ := fieldValue(e, v.Field)
		return v.Fn(actual, v.Args...)
	}
	return false
}

func fieldValue(e *model.Entity, f Field) (any, bool) {
	if f.Attr {
		return e.Attr(f.Name)
	}
	return e.Extra(f.Name)
}

func compare(actual any, present bool, expected any) bool {
	if expected == nil {
		return !present || actual == nil
	}
	if !present || actual == nil {
		return false
	}
	if ir.IsNumeric(expected) {
		want, _ := ir.Number(expected)
		got, ok := ir.NumericValue(actual)
		return ok && got == want
	}
	if want, ok := expected.(time.Time); ok {
		got, isTime := actual.(time.Time)
		return isTime && got.Equal(want)
	}
	want, _ := ir.Text(expected)
	got, _ := ir.Text(actual)
	return got == want
}
