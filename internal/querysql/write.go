package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
)

// Insert compiles an INSERT of row returning the stored row.
// At least one column is required.
func (c *Compiler) Insert(kind model.Kind, row model.Row) (Statement, error) {
	desc := model.MustLookup(kind)
	cols := desc.OrderedColumns(row)
	if len(cols) == 0 {
		return Statement{}, errs.Invalid("no data to insert into %s", desc.Table)
	}
	b := &builder{dialect: c.Dialect, desc: desc, params: []any{}}
	marks := make([]string, len(cols))
	for i, col := range cols {
		marks[i] = b.bind(row[col])
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		desc.Table, strings.Join(cols, ", "), strings.Join(marks, ", "), desc.SelectList())
	return Statement{SQL: sql, Params: b.params}, nil
}

// Update compiles an UPDATE of the columns in set on the rows matching
// target, returning the stored rows. target must not match everything.
func (c *Compiler) Update(kind model.Kind, set model.Row, target queryir.Predicate) (Statement, error) {
	desc := model.MustLookup(kind)
	cols := desc.OrderedColumns(set)
	if len(cols) == 0 {
		return Statement{}, errs.Invalid("no columns to update in %s", desc.Table)
	}
	if isTrue(target) {
		return Statement{}, errs.Invalid("cannot determine target for update of %s", desc.Table)
	}
	if err := queryir.Validate(queryir.Select{From: kind, Filter: target}); err != nil {
		return Statement{}, err
	}
	b := &builder{dialect: c.Dialect, desc: desc, params: []any{}}
	assigns := make([]string, len(cols))
	for i, col := range cols {
		assigns[i] = col + " = " + b.bind(set[col])
	}
	where, err := b.predicate(target)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		desc.Table, strings.Join(assigns, ", "), where, desc.SelectList())
	return Statement{SQL: sql, Params: b.params}, nil
}

// Delete compiles a DELETE by primary key returning the removed row.
func (c *Compiler) Delete(kind model.Kind, id string) (Statement, error) {
	desc := model.MustLookup(kind)
	if id == "" {
		return Statement{}, errs.Invalid("delete from %s requires an id", desc.Table)
	}
	b := &builder{dialect: c.Dialect, desc: desc, params: []any{}}
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = %s RETURNING %s",
		desc.Table, b.bind(id), desc.SelectList())
	return Statement{SQL: sql, Params: b.params}, nil
}
