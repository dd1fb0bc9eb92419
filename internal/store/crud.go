package store

import (
	"context"
	"fmt"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
)

// Select runs q and maps every row. Rows failing a Bind post-filter are
// dropped before projection.
func (t *Tx) Select(ctx context.Context, q queryir.Select) ([]*model.Entity, error) {
	st, err := t.Compiler().Select(q)
	if err != nil {
		return nil, err
	}
	rows, err := t.Execute(ctx, st.SQL, st.Params...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.From, err)
	}

	result := make([]*model.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := model.FromRow(q.From, row)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", q.From, err)
		}
		if st.PostFilter != nil && !queryir.Match(st.PostFilter, e) {
			continue
		}
		if len(q.Fields) > 0 {
			e.Project(q.Fields)
		}
		result = append(result, e)
	}
	return result, nil
}

// Insert writes e and returns the stored entity. e itself is not modified.
// The entity must carry some data besides managed attributes.
func (t *Tx) Insert(ctx context.Context, e *model.Entity) (*model.Entity, error) {
	row, err := model.ToRow(e)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "insert %s", e.Kind())
	}
	if !hasData(e.Descriptor(), row) {
		return nil, errs.Invalid("no data to insert into %s", e.Descriptor().Table)
	}

	e = e.Clone()
	now := t.store.clock().UTC()
	if e.ID() == "" {
		if err := e.SetAttr("id", t.store.ids.Generate()); err != nil {
			return nil, err
		}
	}
	if _, ok := e.Attr("createdAt"); !ok {
		_ = e.SetAttr("createdAt", now)
	}
	if e.Descriptor().Recognizes("updatedAt") {
		_ = e.SetAttr("updatedAt", now)
	}

	if row, err = model.ToRow(e); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "insert %s", e.Kind())
	}
	st, err := t.Compiler().Insert(e.Kind(), row)
	if err != nil {
		return nil, err
	}
	return t.one(ctx, e.Kind(), "insert", st.SQL, st.Params)
}

// Update writes the attributes of e that differ from what was loaded and
// returns the stored entity. The target row is e's id, else its unique name.
// When nothing differs no write is issued and the current row is returned.
func (t *Tx) Update(ctx context.Context, e *model.Entity) (*model.Entity, error) {
	target, err := UpdateTarget(e)
	if err != nil {
		return nil, err
	}
	changes, err := model.Diff(e)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "update %s", e.Kind())
	}

	if len(changes) == 0 {
		found, err := t.Select(ctx, queryir.Select{From: e.Kind(), Filter: target})
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, errs.New(errs.NotFound, "%s to update does not exist", e.Kind())
		}
		return found[0], nil
	}

	if a, ok := e.Descriptor().Attribute("updatedAt"); ok {
		changes[a.Column] = t.store.clock().UTC()
	}
	st, err := t.Compiler().Update(e.Kind(), changes, target)
	if err != nil {
		return nil, err
	}
	return t.one(ctx, e.Kind(), "update", st.SQL, st.Params)
}

// Delete removes the row with e's id and returns it as it was.
func (t *Tx) Delete(ctx context.Context, e *model.Entity) (*model.Entity, error) {
	st, err := t.Compiler().Delete(e.Kind(), e.ID())
	if err != nil {
		return nil, err
	}
	return t.one(ctx, e.Kind(), "delete", st.SQL, st.Params)
}

// UpdateTarget identifies the row an update addresses.
func UpdateTarget(e *model.Entity) (queryir.Predicate, error) {
	if id := e.ID(); id != "" {
		return queryir.Identity{ID: id}, nil
	}
	d := e.Descriptor()
	if d.Unique != "" {
		if v, ok := e.Attr(d.Unique); ok && v != "" {
			return queryir.Equals{Field: queryir.Field{Name: d.Unique, Attr: true}, Value: v}, nil
		}
	}
	return nil, errs.Invalid("cannot determine target %s: no id or unique name", e.Kind())
}

// one runs a statement expected to return exactly one row.
func (t *Tx) one(ctx context.Context, kind model.Kind, op, query string, params []any) (*model.Entity, error) {
	rows, err := t.Execute(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, kind, err)
	}
	switch len(rows) {
	case 0:
		return nil, errs.New(errs.NotFound, "%s %s: no matching row", op, kind)
	case 1:
		return model.FromRow(kind, rows[0])
	default:
		return nil, errs.New(errs.NotUnique, "%s %s: %d rows affected", op, kind, len(rows))
	}
}

// hasData reports whether row carries a non-managed attribute or a
// non-empty bag.
func hasData(d *model.Descriptor, row model.Row) bool {
	for _, a := range d.Attributes {
		v, ok := row[a.Column]
		if !ok || a.Managed {
			continue
		}
		if a.Name == d.Bag && v == "{}" {
			continue
		}
		return true
	}
	return false
}
