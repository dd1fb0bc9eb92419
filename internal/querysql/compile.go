// Package querysql compiles queryir predicate trees and entity rows into
// parameterized SQL for a Dialect.
//
// CRITICAL: every literal is bound as a parameter, never interpolated. The
// only caller-controlled text written into SQL is bag keys, which
// queryir.Validate restricts before compilation.
package querysql

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/ir"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
)

// Statement is one compiled SQL statement.
type Statement struct {
	SQL    string
	Params []any

	// PostFilter is set when the filter contains a Bind branch. SQL then
	// over-selects and each fetched entity must satisfy PostFilter.
	PostFilter queryir.Predicate
}

// Compiler compiles queries for one dialect. It holds no per-query state
// and is safe for concurrent use.
type Compiler struct {
	Dialect Dialect
}

// NewCompiler creates a compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// builder accumulates parameters and hands out placeholders in text order.
type builder struct {
	dialect Dialect
	desc    *model.Descriptor
	params  []any
}

func (b *builder) bind(v any) string {
	b.params = append(b.params, v)
	return b.dialect.Placeholder(len(b.params))
}

// Select compiles a full read.
//
// MANDATORY: every select ends with "created ASC, id ASC" so results come
// back in insertion order when no other order decides.
func (c *Compiler) Select(q queryir.Select) (Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return Statement{}, err
	}
	desc := model.MustLookup(q.From)
	b := &builder{dialect: c.Dialect, desc: desc, params: []any{}}

	where, err := b.where(q.Filter, q.Type)
	if err != nil {
		return Statement{}, err
	}

	order := make([]string, 0, len(q.OrderBy)+2)
	for _, o := range q.OrderBy {
		expr := b.orderExpr(o.Field)
		if o.Desc {
			order = append(order, expr+" DESC")
		} else {
			order = append(order, expr+" ASC")
		}
	}
	order = append(order, "created ASC", "id ASC")

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		desc.SelectList(), desc.Table, where, strings.Join(order, ", "))

	st := Statement{SQL: sql, Params: b.params}
	if queryir.HasBind(q.Filter) {
		st.PostFilter = q.Filter
	}
	return st, nil
}

// Where compiles only the condition for kind. The result is "" for a
// predicate that matches everything.
func (c *Compiler) Where(kind model.Kind, p queryir.Predicate) (string, []any, error) {
	if err := queryir.Validate(queryir.Select{From: kind, Filter: p}); err != nil {
		return "", nil, err
	}
	b := &builder{dialect: c.Dialect, desc: model.MustLookup(kind), params: []any{}}
	if isTrue(p) {
		return "", b.params, nil
	}
	sql, err := b.predicate(p)
	return sql, b.params, err
}

// where renders " WHERE ..." or "" when nothing restricts the rows.
func (b *builder) where(p queryir.Predicate, tf queryir.TypeFilter) (string, error) {
	var conds []string
	if !tf.IsZero() {
		conds = append(conds, b.typeFilter(tf))
	}
	if !isTrue(p) {
		sql, err := b.predicate(p)
		if err != nil {
			return "", err
		}
		conds = append(conds, sql)
	}
	switch len(conds) {
	case 0:
		return "", nil
	case 1:
		return " WHERE " + conds[0], nil
	default:
		return " WHERE " + joinParenthesized(conds, " AND "), nil
	}
}

func (b *builder) typeFilter(tf queryir.TypeFilter) string {
	if tf.ID != "" {
		return "types_id = " + b.bind(tf.ID)
	}
	return "types_id = (SELECT id FROM types WHERE name = " + b.bind(tf.Name) + ")"
}

func isTrue(p queryir.Predicate) bool {
	switch v := p.(type) {
	case nil, queryir.True:
		return true
	case queryir.And:
		return len(v.Predicates) == 0
	}
	return false
}

// predicate renders one node. Children of And/Or are each parenthesized.
func (b *builder) predicate(p queryir.Predicate) (string, error) {
	switch v := p.(type) {
	case nil, queryir.True:
		return "1 = 1", nil
	case queryir.Bind:
		// Evaluated in memory; neutral here so the SQL over-selects.
		return "1 = 1", nil
	case queryir.Identity:
		return "id = " + b.bind(v.ID), nil
	case queryir.Equals:
		return b.equals(v)
	case queryir.And:
		if len(v.Predicates) == 0 {
			return "1 = 1", nil
		}
		return b.join(v.Predicates, " AND ")
	case queryir.Or:
		if len(v.Predicates) == 0 {
			return "1 = 0", nil
		}
		return b.join(v.Predicates, " OR ")
	default:
		return "", errs.Invalid("unsupported predicate type: %T", p)
	}
}

func (b *builder) join(children []queryir.Predicate, op string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		sql, err := b.predicate(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return joinParenthesized(parts, op), nil
}

func joinParenthesized(parts []string, op string) string {
	wrapped := make([]string, len(parts))
	for i, p := range parts {
		wrapped[i] = "(" + p + ")"
	}
	return strings.Join(wrapped, op)
}

// equals applies the cast rule.
func (b *builder) equals(e queryir.Equals) (string, error) {
	if e.Field.Attr {
		a, _ := b.desc.Attribute(e.Field.Name)
		col := a.Column
		if a.ReadOnly() {
			col = a.Expr
		}
		if e.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + b.bind(attrParam(e.Value)), nil
	}

	bag := b.desc.BagColumn()
	key := e.Field.Name
	switch v := e.Value.(type) {
	case nil:
		return b.dialect.BagText(bag, key) + " IS NULL", nil
	case bool:
		text, _ := ir.Text(v)
		return b.dialect.BagBool(bag, key) + " = " + b.bind(text), nil
	}
	if ir.IsNumeric(e.Value) {
		return b.dialect.BagNumeric(bag, key) + " = " + b.bind(numericParam(e.Value)), nil
	}
	text, _ := ir.Text(e.Value)
	return b.dialect.BagText(bag, key) + " = " + b.bind(text), nil
}

func (b *builder) orderExpr(f queryir.Field) string {
	if f.Attr {
		a, _ := b.desc.Attribute(f.Name)
		if a.ReadOnly() {
			return a.Expr
		}
		return a.Column
	}
	return b.dialect.BagOrder(b.desc.BagColumn(), f.Name)
}

// numericParam binds integers exactly as int64 and everything else as
// float64.
func numericParam(v any) any {
	if i, ok := ir.Integer(v); ok {
		return i
	}
	f, _ := ir.Number(v)
	return f
}

// attrParam passes driver-native values through and renders the rest as
// text.
func attrParam(v any) any {
	switch val := v.(type) {
	case string, []byte, bool, int64, float64, time.Time:
		return val
	case model.Validator:
		return val.String()
	}
	if ir.IsNumeric(v) {
		return numericParam(v)
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	text, _ := ir.Text(v)
	return text
}
