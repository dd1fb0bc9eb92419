package session

import (
	"context"
	"io"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
)

// CreateAttachment stores content under doc and queues the attachment.
// A nil doc means the newest queued result, which must be a document or
// an attachment (whose document is used). content may be nil when meta
// carries data.
func (s *Session) CreateAttachment(ctx context.Context, doc *model.Entity, content io.Reader, meta map[string]any) *Session {
	return s.run(ctx, "createAttachment", model.KindAttachment, func() (any, error) {
		owner, err := s.owner(doc)
		if err != nil {
			return nil, err
		}
		if owner == "" {
			return nil, errs.Invalid("createAttachment needs a document")
		}

		att, err := model.NewFromData(model.KindAttachment, meta)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, err, "invalid attachment meta")
		}
		if err := att.SetAttr("documentId", owner); err != nil {
			return nil, err
		}
		if content != nil {
			data, err := io.ReadAll(content)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidArgument, err, "read attachment content")
			}
			if err := att.SetAttr("content", data); err != nil {
				return nil, err
			}
		}

		stored, err := s.tx.Insert(ctx, att)
		if err != nil {
			return nil, err
		}
		s.emit(EventCreated, stored)
		return stored, nil
	})
}

// SearchAttachments queues the attachments of doc matching predicate. A
// nil doc means the newest queued document; when there is none every
// attachment is searched.
func (s *Session) SearchAttachments(ctx context.Context, doc *model.Entity, predicate any) *Session {
	return s.run(ctx, "searchAttachments", model.KindAttachment, func() (any, error) {
		owner, err := s.owner(doc)
		if err != nil && doc != nil {
			return nil, err
		}
		q, err := s.query(ctx, model.KindAttachment, nil, predicate, queryir.Options{})
		if err != nil {
			return nil, err
		}
		if owner != "" {
			byOwner := queryir.Equals{Field: queryir.Field{Name: "documentId", Attr: true}, Value: owner}
			q.Filter = queryir.And{Predicates: []queryir.Predicate{byOwner, q.Filter}}
		}
		return s.tx.Select(ctx, q)
	})
}

// owner resolves the document id an attachment operation addresses.
func (s *Session) owner(doc *model.Entity) (string, error) {
	if doc == nil {
		last, ok := s.queue.Last()
		if !ok {
			return "", nil
		}
		e, isEntity := last.(*model.Entity)
		if !isEntity {
			return "", errs.Invalid("newest queued result is %T, not a document", last)
		}
		doc = e
	}
	switch doc.Kind() {
	case model.KindDocument:
		if doc.ID() == "" {
			return "", errs.Invalid("document has no id")
		}
		return doc.ID(), nil
	case model.KindAttachment:
		return doc.DocumentID(), nil
	}
	return "", errs.Invalid("%s cannot own attachments", doc.Kind())
}
