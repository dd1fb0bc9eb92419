package model

import (
	"fmt"
	"strings"
)

// FromRow maps a raw row onto a new entity of kind. Columns the kind does
// not recognize are ignored; recognized columns missing from the row are
// absent on the entity. Bag keys that collide with a recognized attribute
// name stay out of view but are kept in the bag, so a later write does not
// drop them.
func FromRow(kind Kind, row Row) (*Entity, error) {
	d, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	e := New(kind)

	for col, raw := range row {
		a, ok := d.AttributeByColumn(col)
		if !ok {
			continue
		}
		v, err := decode(a, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Table, col, err)
		}
		if v == nil {
			continue
		}
		if a.Name == d.Bag {
			for k, bv := range v.(map[string]any) {
				if strings.HasPrefix(k, Sigil) || d.Recognizes(k) {
					e.hide(k, bv)
					continue
				}
				e.extra[k] = bv
			}
		} else {
			e.attrs[a.Name] = v
		}
	}

	if err := MarkLoaded(e); err != nil {
		return nil, err
	}
	return e, nil
}

// ToRow maps an entity onto the columns to write. Absent and falsy values are
// skipped, read-only attributes are never written, and the metadata bag is
// always present as one canonical JSON value.
func ToRow(e *Entity) (Row, error) {
	return encodeAll(e, false)
}

func encodeAll(e *Entity, includeReadOnly bool) (Row, error) {
	d := e.desc
	row := make(Row, len(d.Attributes))
	for _, a := range d.Attributes {
		if a.ReadOnly() && !includeReadOnly {
			continue
		}
		var v any
		if a.Name == d.Bag {
			v = e.bag()
		} else {
			v = e.attrs[a.Name]
		}
		enc, ok, err := encode(a, v)
		if err != nil {
			return nil, err
		}
		if ok {
			row[a.Column] = enc
		}
	}
	return row, nil
}

// Diff returns the columns whose encoded value differs from what was last
// loaded. Managed and read-only attributes are never part of a diff. JSON
// values are compared in canonical form, so key order and number spelling
// do not register as changes. An unloaded entity diffs as its full row.
func Diff(e *Entity) (Row, error) {
	current, err := ToRow(e)
	if err != nil {
		return nil, err
	}
	changes := Row{}
	for _, a := range e.desc.Attributes {
		if a.Managed || a.ReadOnly() {
			continue
		}
		cur, ok := current[a.Column]
		if !ok {
			continue
		}
		if prev, had := e.loaded[a.Column]; had && sameEncoded(prev, cur) {
			continue
		}
		changes[a.Column] = cur
	}
	return changes, nil
}

// MarkLoaded records e's current state as the loaded snapshot. The snapshot
// is kept in encoded form so later diffs compare like with like.
func MarkLoaded(e *Entity) error {
	snap, err := encodeAll(e, true)
	if err != nil {
		return err
	}
	e.loaded = snap
	return nil
}
