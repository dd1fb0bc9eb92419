package session

import (
	"context"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
	"github.com/roach88/nopg/internal/validate"
)

// Create inserts a document built from data and queues it. typ is nil for
// an untyped document, a type name, or a TypeDef entity. Typed documents
// are validated first; a failing candidate is never written.
func (s *Session) Create(ctx context.Context, typ any, data map[string]any) *Session {
	return s.run(ctx, "create", model.KindDocument, func() (any, error) {
		doc, err := model.NewFromData(model.KindDocument, data)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, err, "invalid document data")
		}
		t, err := s.resolveType(ctx, typ)
		if err != nil {
			return nil, err
		}
		if t != nil {
			if err := doc.SetAttr("typeId", t.ID()); err != nil {
				return nil, err
			}
		}
		if err := s.validateDocument(ctx, doc); err != nil {
			return nil, err
		}
		stored, err := s.tx.Insert(ctx, doc)
		if err != nil {
			return nil, err
		}
		s.emit(EventCreated, stored)
		return stored, nil
	})
}

// Search queues the list of matching documents as one result. predicate
// takes every form queryir.Parse accepts.
func (s *Session) Search(ctx context.Context, typ any, predicate any, opts queryir.Options) *Session {
	return s.run(ctx, "search", model.KindDocument, func() (any, error) {
		q, err := s.query(ctx, model.KindDocument, typ, predicate, opts)
		if err != nil {
			return nil, err
		}
		return s.tx.Select(ctx, q)
	})
}

// SearchSingle is Search asserting exactly one hit, queued as an entity.
func (s *Session) SearchSingle(ctx context.Context, typ any, predicate any, opts queryir.Options) *Session {
	return s.run(ctx, "searchSingle", model.KindDocument, func() (any, error) {
		q, err := s.query(ctx, model.KindDocument, typ, predicate, opts)
		if err != nil {
			return nil, err
		}
		return s.single(ctx, q)
	})
}

// GetDocument queues the one document matching predicate.
func (s *Session) GetDocument(ctx context.Context, predicate any) *Session {
	return s.run(ctx, "getDocument", model.KindDocument, func() (any, error) {
		q, err := s.query(ctx, model.KindDocument, nil, predicate, queryir.Options{})
		if err != nil {
			return nil, err
		}
		return s.single(ctx, q)
	})
}

// Update merges data into e and writes what changed. Fields not named in
// data keep their values. Documents are revalidated against their type.
func (s *Session) Update(ctx context.Context, e *model.Entity, data map[string]any) *Session {
	kind := model.KindDocument
	if e != nil {
		kind = e.Kind()
	}
	return s.run(ctx, "update", kind, func() (any, error) {
		if e == nil {
			return nil, errs.Invalid("update needs an entity")
		}
		next := e.Clone()
		if err := next.Apply(data); err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, err, "invalid update data")
		}
		switch kind {
		case model.KindDocument:
			if err := s.validateDocument(ctx, next); err != nil {
				return nil, err
			}
		case model.KindType:
			if err := s.checkType(ctx, next); err != nil {
				return nil, err
			}
		}
		stored, err := s.tx.Update(ctx, next)
		if err != nil {
			return nil, err
		}
		if !e.Loaded() || !stored.UpdatedAt().Equal(e.UpdatedAt()) {
			s.emit(EventUpdated, stored)
		}
		return stored, nil
	})
}

// Delete removes e by id and queues the deleted entity.
func (s *Session) Delete(ctx context.Context, e *model.Entity) *Session {
	kind := model.KindDocument
	if e != nil {
		kind = e.Kind()
	}
	return s.run(ctx, "delete", kind, func() (any, error) {
		if e == nil {
			return nil, errs.Invalid("delete needs an entity")
		}
		deleted, err := s.tx.Delete(ctx, e)
		if err != nil {
			return nil, err
		}
		s.emit(EventDeleted, deleted)
		return deleted, nil
	})
}

// query builds a Select from the caller-facing search arguments.
func (s *Session) query(ctx context.Context, kind model.Kind, typ any, predicate any, opts queryir.Options) (queryir.Select, error) {
	p, err := queryir.Parse(predicate, opts.Match)
	if err != nil {
		return queryir.Select{}, err
	}
	q := queryir.Select{From: kind, Filter: p, Fields: opts.Fields}
	if opts.Order != "" {
		o, err := queryir.ParseOrder(opts.Order)
		if err != nil {
			return queryir.Select{}, errs.Wrap(errs.InvalidArgument, err, "invalid order")
		}
		q.OrderBy = []queryir.OrderBy{o}
	}
	if kind == model.KindDocument {
		tf, err := typeFilter(typ)
		if err != nil {
			return queryir.Select{}, err
		}
		q.Type = tf
	}
	return q, nil
}

func typeFilter(typ any) (queryir.TypeFilter, error) {
	switch t := typ.(type) {
	case nil:
		return queryir.TypeFilter{}, nil
	case string:
		return queryir.TypeFilter{Name: t}, nil
	case *model.Entity:
		if t.Kind() != model.KindType {
			return queryir.TypeFilter{}, errs.Invalid("%s is not a type", t)
		}
		if t.ID() != "" {
			return queryir.TypeFilter{ID: t.ID()}, nil
		}
		if t.Name() != "" {
			return queryir.TypeFilter{Name: t.Name()}, nil
		}
		return queryir.TypeFilter{}, errs.Invalid("type has neither id nor name")
	}
	return queryir.TypeFilter{}, errs.Invalid("unsupported type reference %T", typ)
}

// single runs q expecting exactly one row.
func (s *Session) single(ctx context.Context, q queryir.Select) (*model.Entity, error) {
	found, err := s.tx.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, errs.New(errs.NotFound, "no %s matches", q.From)
	case 1:
		return found[0], nil
	}
	return nil, errs.New(errs.NotUnique, "%d %s rows match, expected one", len(found), q.From)
}

// validateDocument checks a typed document against its TypeDef.
func (s *Session) validateDocument(ctx context.Context, doc *model.Entity) error {
	id := doc.TypeID()
	if id == "" {
		return nil
	}
	typ, err := s.single(ctx, queryir.Select{From: model.KindType, Filter: queryir.Identity{ID: id}})
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.Invalid("document references unknown type %s", id)
		}
		return err
	}
	var libs []string
	if v := typ.Validator(); !v.IsZero() && v.Lang == model.ValidatorCUE {
		if libs, err = s.cueLibraries(ctx); err != nil {
			return err
		}
	}
	return s.db.validator.Validate(ctx, typ, doc.Fields(), libs)
}

// checkType rejects a TypeDef whose rules would not compile.
func (s *Session) checkType(ctx context.Context, typ *model.Entity) error {
	checker, ok := s.db.validator.(validate.Checker)
	if !ok {
		return nil
	}
	var libs []string
	if v := typ.Validator(); !v.IsZero() && v.Lang == model.ValidatorCUE {
		var err error
		if libs, err = s.cueLibraries(ctx); err != nil {
			return err
		}
	}
	return checker.Check(ctx, typ, libs)
}
