package session

import (
	"context"
	"fmt"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
	"github.com/roach88/nopg/internal/validate"
)

// LibrarySource is a library to import.
type LibrarySource struct {
	Name    string
	Content string

	// ContentType defaults to validate.ContentTypeCUE. Only CUE libraries
	// are made available to custom validators.
	ContentType string

	Meta map[string]any
}

// ImportLibrary stores src under its name, replacing the content of an
// existing library with that name, and queues the library.
func (s *Session) ImportLibrary(ctx context.Context, src LibrarySource) *Session {
	return s.run(ctx, "importLibrary", model.KindLibrary, func() (any, error) {
		return s.importLibrary(ctx, src)
	})
}

// SearchLibraries queues the list of matching libraries.
func (s *Session) SearchLibraries(ctx context.Context, predicate any) *Session {
	return s.run(ctx, "searchLibraries", model.KindLibrary, func() (any, error) {
		q, err := s.query(ctx, model.KindLibrary, nil, predicate, queryir.Options{})
		if err != nil {
			return nil, err
		}
		return s.tx.Select(ctx, q)
	})
}

func (s *Session) importLibrary(ctx context.Context, src LibrarySource) (*model.Entity, error) {
	if src.Name == "" {
		return nil, errs.Invalid("library name is empty")
	}
	if src.Content == "" {
		return nil, errs.Invalid("library %s has no content", src.Name)
	}
	contentType := src.ContentType
	if contentType == "" {
		contentType = validate.ContentTypeCUE
	}

	found, err := s.tx.Select(ctx, queryir.Select{
		From:   model.KindLibrary,
		Filter: queryir.Equals{Field: queryir.Field{Name: "name", Attr: true}, Value: src.Name},
	})
	if err != nil {
		return nil, err
	}

	lib := model.New(model.KindLibrary)
	if len(found) > 0 {
		lib = found[0]
	}
	if err := lib.Apply(src.Meta); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err, "invalid library meta")
	}
	for attr, v := range map[string]any{"name": src.Name, "content": src.Content, "contentType": contentType} {
		if err := lib.SetAttr(attr, v); err != nil {
			return nil, err
		}
	}

	if !lib.Loaded() {
		stored, err := s.tx.Insert(ctx, lib)
		if err != nil {
			return nil, err
		}
		s.emit(EventCreated, stored)
		return stored, nil
	}
	stored, err := s.tx.Update(ctx, lib)
	if err != nil {
		return nil, err
	}
	if !stored.UpdatedAt().Equal(found[0].UpdatedAt()) {
		s.emit(EventUpdated, stored)
	}
	return stored, nil
}

// cueLibraries returns the sources of every CUE library in import order.
func (s *Session) cueLibraries(ctx context.Context) ([]string, error) {
	libs, err := s.tx.Select(ctx, queryir.Select{
		From:   model.KindLibrary,
		Filter: queryir.Equals{Field: queryir.Field{Name: "contentType", Attr: true}, Value: validate.ContentTypeCUE},
	})
	if err != nil {
		return nil, fmt.Errorf("load libraries: %w", err)
	}
	sources := make([]string, 0, len(libs))
	for _, l := range libs {
		sources = append(sources, string(l.Content()))
	}
	return sources, nil
}
