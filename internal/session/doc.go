// Package session is the transactional operation queue.
//
// A Session wraps one transaction and one FIFO result queue. Every
// operation (Create, Search, Update, DeclareType, ...) runs its statements
// and appends its result to the queue: a single entity, a bool, an int, or
// a whole result list as one element. Results are popped in call order
// with Fetch.
//
// Operations return the session so calls chain:
//
//	s.DeclareType(ctx, "Note", nil).
//		Create(ctx, "Note", map[string]any{"text": "hello"}).
//		Search(ctx, "Note", nil, queryir.Options{})
//	if err := s.Err(); err != nil {
//		s.Rollback()
//		return err
//	}
//	typ, _ := s.Fetch()
//
// The first failure is sticky: later operations in the chain are skipped
// and Commit refuses until the caller rolls back. The engine never rolls
// back on its own, so the queue can be inspected after a failure.
//
// CRITICAL: a Session is a single-owner mutable value. Operations run
// strictly one after another, since later ones may depend on ids produced
// earlier. Never share a Session between goroutines; open one per
// goroutine from the shared DB instead.
package session
