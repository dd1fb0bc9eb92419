package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/nopg/internal/model"
)

// Predicate is a node of the predicate tree.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - True: matches every row
//   - Equals: field = literal
//   - And / Or: boolean combination of children
//   - Bind: Go function over a field value, evaluated after fetch
//   - Identity: primary key match
type Predicate interface {
	predicateNode()
}

// Field addresses a value on an entity.
type Field struct {
	// Name is the attribute or bag key, without sigil.
	Name string

	// Attr is true for recognized attributes ("$name" in input).
	Attr bool
}

// ParseField reads "$name" as an attribute and anything else as a bag key.
func ParseField(s string) Field {
	if name, ok := strings.CutPrefix(s, model.Sigil); ok {
		return Field{Name: name, Attr: true}
	}
	return Field{Name: s}
}

// String renders the field the way callers write it.
func (f Field) String() string {
	if f.Attr {
		return model.Sigil + f.Name
	}
	return f.Name
}

// True matches every row. It compiles to no WHERE clause at top level.
type True struct{}

func (True) predicateNode() {}

// Equals compares a field with a literal. The literal is always bound as a
// parameter.
type Equals struct {
	Field Field
	Value any
}

func (Equals) predicateNode() {}

// And holds when every child holds. An empty And is True.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or holds when any child holds. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// BindFunc decides whether a field value matches. args are the extra
// arguments given after the function in the BIND form.
type BindFunc func(value any, args ...any) bool

// Bind delegates matching to Fn. SQL cannot evaluate it, so the compiler
// emits a neutral condition and flags the query for post-filtering.
type Bind struct {
	Field Field
	Fn    BindFunc
	Args  []any
}

func (Bind) predicateNode() {}

// Identity matches the row with the given primary key.
type Identity struct {
	ID string
}

func (Identity) predicateNode() {}

// MatchMode selects how the keys of a flat predicate map combine.
type MatchMode string

const (
	// MatchAll requires every key to hold (the default).
	MatchAll MatchMode = "all"

	// MatchAny requires at least one key to hold.
	MatchAny MatchMode = "any"
)

// ParseMatchMode accepts "", "all" and "any".
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(s)) {
	case "", MatchAll:
		return MatchAll, nil
	case MatchAny:
		return MatchAny, nil
	}
	return "", fmt.Errorf("invalid match mode %q: must be all or any", s)
}

// OrderBy orders results by one field.
type OrderBy struct {
	Field Field
	Desc  bool
}

// ParseOrder reads "field", "$attr", and a leading "-" for descending.
func ParseOrder(s string) (OrderBy, error) {
	desc := false
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		desc = true
		s = rest
	}
	if s == "" || s == model.Sigil {
		return OrderBy{}, fmt.Errorf("invalid order field %q", s)
	}
	return OrderBy{Field: ParseField(s), Desc: desc}, nil
}

// TypeFilter restricts documents to one TypeDef, either by id or by name.
// The zero value means no restriction.
type TypeFilter struct {
	ID   string
	Name string
}

// IsZero reports whether no type restriction applies.
func (t TypeFilter) IsZero() bool { return t.ID == "" && t.Name == "" }

// Select is a complete read of one entity kind.
//
// Semantics:
//
//	SELECT * FROM <table of From> WHERE <Filter> AND <Type> ORDER BY <OrderBy>, created, id
type Select struct {
	From    model.Kind
	Filter  Predicate // nil = True
	Type    TypeFilter
	OrderBy []OrderBy

	// Fields restricts the caller-defined fields copied onto results. It
	// does not change the SQL.
	Fields []string
}

// Options are the caller-facing search options.
type Options struct {
	Match  MatchMode
	Order  string
	Fields []string
}
