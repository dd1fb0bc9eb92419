package session

import (
	"context"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
)

// CreateType inserts a TypeDef and queues it. name may be empty when data
// carries "$name", or for an anonymous type.
func (s *Session) CreateType(ctx context.Context, name string, data map[string]any) *Session {
	return s.run(ctx, "createType", model.KindType, func() (any, error) {
		typ, err := newType(name, data)
		if err != nil {
			return nil, err
		}
		return s.insertType(ctx, typ)
	})
}

// DeclareType creates the named TypeDef, or updates it in place when the
// name exists, keeping its id. The result is queued either way.
func (s *Session) DeclareType(ctx context.Context, name string, data map[string]any) *Session {
	return s.run(ctx, "declareType", model.KindType, func() (any, error) {
		typ, err := newType(name, data)
		if err != nil {
			return nil, err
		}
		if typ.Name() == "" {
			return s.insertType(ctx, typ)
		}

		existing, err := s.findType(ctx, typ.Name())
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return s.insertType(ctx, typ)
		}

		next := existing.Clone()
		if err := next.Apply(data); err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, err, "invalid type data")
		}
		if err := s.checkType(ctx, next); err != nil {
			return nil, err
		}
		stored, err := s.tx.Update(ctx, next)
		if err != nil {
			return nil, err
		}
		if !stored.UpdatedAt().Equal(existing.UpdatedAt()) {
			s.emit(EventUpdated, stored)
		}
		return stored, nil
	})
}

// CreateOrReplaceType is DeclareType.
func (s *Session) CreateOrReplaceType(ctx context.Context, name string, data map[string]any) *Session {
	return s.DeclareType(ctx, name, data)
}

// TypeExists queues whether a TypeDef with name exists.
func (s *Session) TypeExists(ctx context.Context, name string) *Session {
	return s.run(ctx, "typeExists", model.KindType, func() (any, error) {
		typ, err := s.findType(ctx, name)
		if err != nil {
			return nil, err
		}
		return typ != nil, nil
	})
}

// GetType queues the TypeDef with name. A missing name is NotFound.
func (s *Session) GetType(ctx context.Context, name string) *Session {
	return s.run(ctx, "getType", model.KindType, func() (any, error) {
		typ, err := s.findType(ctx, name)
		if err != nil {
			return nil, err
		}
		if typ == nil {
			return nil, errs.New(errs.NotFound, "type %q does not exist", name)
		}
		return typ, nil
	})
}

// SearchTypes queues the list of matching TypeDefs.
func (s *Session) SearchTypes(ctx context.Context, predicate any, opts queryir.Options) *Session {
	return s.run(ctx, "searchTypes", model.KindType, func() (any, error) {
		q, err := s.query(ctx, model.KindType, nil, predicate, opts)
		if err != nil {
			return nil, err
		}
		return s.tx.Select(ctx, q)
	})
}

func newType(name string, data map[string]any) (*model.Entity, error) {
	typ, err := model.NewFromData(model.KindType, data)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "invalid type data")
	}
	if name != "" {
		if err := typ.SetAttr("name", name); err != nil {
			return nil, err
		}
	}
	return typ, nil
}

func (s *Session) insertType(ctx context.Context, typ *model.Entity) (*model.Entity, error) {
	if err := s.checkType(ctx, typ); err != nil {
		return nil, err
	}
	stored, err := s.tx.Insert(ctx, typ)
	if err != nil {
		return nil, err
	}
	s.emit(EventCreated, stored)
	return stored, nil
}

// findType returns the TypeDef named name, or nil.
func (s *Session) findType(ctx context.Context, name string) (*model.Entity, error) {
	if name == "" {
		return nil, errs.Invalid("type name is empty")
	}
	found, err := s.tx.Select(ctx, queryir.Select{
		From:   model.KindType,
		Filter: queryir.Equals{Field: queryir.Field{Name: "name", Attr: true}, Value: name},
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// resolveType loads the TypeDef a create refers to: nil, a name, or an
// entity (reloaded by id when not loaded).
func (s *Session) resolveType(ctx context.Context, typ any) (*model.Entity, error) {
	switch t := typ.(type) {
	case nil:
		return nil, nil
	case string:
		found, err := s.findType(ctx, t)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, errs.New(errs.NotFound, "type %q does not exist", t)
		}
		return found, nil
	case *model.Entity:
		if t.Kind() != model.KindType {
			return nil, errs.Invalid("%s is not a type", t)
		}
		if t.Loaded() && t.ID() != "" {
			return t, nil
		}
		if t.ID() != "" {
			return s.single(ctx, queryir.Select{From: model.KindType, Filter: queryir.Identity{ID: t.ID()}})
		}
		return s.resolveType(ctx, t.Name())
	}
	return nil, errs.Invalid("unsupported type reference %T", typ)
}
