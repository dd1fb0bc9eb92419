package queryir

import (
	"strings"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
)

// Validate checks every field reference in q against the kind's metadata.
//
// Rules:
//  1. "$name" must be a recognized attribute other than the metadata bag
//  2. bag keys must be non-empty and free of quote characters and NUL, since
//     they are written into the SQL text
//  3. Bind needs a function
//
// Validate is a pure function with no side effects.
func Validate(q Select) error {
	d, err := model.Lookup(q.From)
	if err != nil {
		return errs.Invalid("%v", err)
	}
	v := &validator{desc: d}
	v.predicate(q.Filter)
	for _, o := range q.OrderBy {
		v.field(o.Field)
	}
	if !q.Type.IsZero() && q.From != model.KindDocument {
		v.fail("type filter applies to documents only, not %s", q.From)
	}
	return v.err
}

// validator keeps the first failure found during traversal.
type validator struct {
	desc *model.Descriptor
	err  error
}

func (v *validator) fail(format string, args ...any) {
	if v.err == nil {
		v.err = errs.Invalid(format, args...)
	}
}

func (v *validator) predicate(p Predicate) {
	switch n := p.(type) {
	case nil, True, Identity:
	case Equals:
		v.field(n.Field)
	case Bind:
		v.field(n.Field)
		if n.Fn == nil {
			v.fail("BIND on %s has no function", n.Field)
		}
	case And:
		for _, c := range n.Predicates {
			v.predicate(c)
		}
	case Or:
		for _, c := range n.Predicates {
			v.predicate(c)
		}
	default:
		v.fail("unsupported predicate %T", p)
	}
}

func (v *validator) field(f Field) {
	if f.Attr {
		a, ok := v.desc.Attribute(f.Name)
		if !ok {
			v.fail("%s has no attribute %q", v.desc.Kind, f.Name)
			return
		}
		if a.Name == v.desc.Bag {
			v.fail("cannot compare the metadata bag %q directly", f)
		}
		return
	}
	ValidateKey(f.Name, v.fail)
}

// ValidateKey reports a bag key that cannot be written into SQL text.
func ValidateKey(key string, fail func(format string, args ...any)) {
	if key == "" {
		fail("empty field name")
		return
	}
	if strings.ContainsAny(key, "'\"\x00") {
		fail("invalid field name %q: quote characters are not allowed", key)
	}
}
