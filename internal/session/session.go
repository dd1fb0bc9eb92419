package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/migrate"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/store"
	"github.com/roach88/nopg/internal/validate"
)

// DB is the shared entry point: one connection pool, one validator, one
// migration registry. It is safe for concurrent use; each Begin returns an
// independent Session.
type DB struct {
	store      *store.Store
	validator  validate.Validator
	registry   *migrate.Registry
	migrations *migrate.Engine
	logger     *slog.Logger
	owned      bool
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger for sessions and migrations.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// WithValidator replaces the default CUE validator.
func WithValidator(v validate.Validator) Option {
	return func(db *DB) { db.validator = v }
}

// WithMigrations replaces the builtin migration registry.
func WithMigrations(r *migrate.Registry) Option {
	return func(db *DB) { db.registry = r }
}

// Open connects with cfg and returns a DB owning the connection.
func Open(ctx context.Context, cfg store.Config, opts ...Option) (*DB, error) {
	db := &DB{logger: slog.Default()}
	for _, opt := range opts {
		opt(db)
	}
	st, err := store.Open(ctx, cfg, store.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}
	db.store = st
	db.owned = true
	db.fillDefaults()
	return db, nil
}

// New wraps an already open store. Close does not close st.
func New(st *store.Store, opts ...Option) *DB {
	db := &DB{store: st, logger: st.Logger()}
	for _, opt := range opts {
		opt(db)
	}
	db.fillDefaults()
	return db
}

func (db *DB) fillDefaults() {
	if db.validator == nil {
		db.validator = validate.New(validate.WithLogger(db.logger))
	}
	if db.registry == nil {
		db.registry = migrate.Builtin()
	}
	db.migrations = migrate.NewEngine(db.registry, migrate.WithLogger(db.logger))
}

// Store returns the underlying store.
func (db *DB) Store() *store.Store { return db.store }

// Close releases the connection if Open created it.
func (db *DB) Close() error {
	if !db.owned {
		return nil
	}
	return db.store.Close()
}

// Begin opens a session on a new transaction.
func (db *DB) Begin(ctx context.Context) (*Session, error) {
	tx, err := db.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{db: db, tx: tx, queue: newValueQueue(), logger: db.logger}, nil
}

type state int

const (
	stateOpen state = iota
	stateCommitted
	stateRolledBack
)

func (s state) String() string {
	switch s {
	case stateCommitted:
		return "committed"
	case stateRolledBack:
		return "rolled back"
	}
	return "open"
}

// Session is one transaction plus its result queue. See the package
// documentation for the chaining and failure rules.
type Session struct {
	db     *DB
	tx     *store.Tx
	state  state
	queue  *valueQueue
	err    error
	logger *slog.Logger

	observers []Observer
	pending   []Event
}

// Err returns the first failure of the chain, or nil.
func (s *Session) Err() error { return s.err }

// Open reports whether the session can still run operations.
func (s *Session) Open() bool { return s.state == stateOpen }

// Subscribe registers an observer for this session's committed changes.
func (s *Session) Subscribe(o Observer) *Session {
	s.observers = append(s.observers, o)
	return s
}

// Fetch pops the oldest unread result. ok is false when the queue is
// empty; that is not an error.
func (s *Session) Fetch() (any, bool) {
	return s.queue.Shift()
}

// FetchAll pops every unread result in order.
func (s *Session) FetchAll() []any {
	return s.queue.Drain()
}

// Pending is the number of unread results.
func (s *Session) Pending() int { return s.queue.Len() }

// FetchAs pops the oldest result as a T. ok is false when the queue is
// empty or the result is not a T; in the latter case the value is still
// consumed.
func FetchAs[T any](s *Session) (T, bool) {
	var zero T
	v, ok := s.Fetch()
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Commit commits the transaction and delivers buffered events. It refuses
// while a chained operation has failed; roll back instead.
func (s *Session) Commit() error {
	if s.state != stateOpen {
		return s.closedError("commit")
	}
	if s.err != nil {
		return fmt.Errorf("commit refused, chain failed: %w", s.err)
	}
	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.state = stateCommitted

	events := s.pending
	s.pending = nil
	for _, e := range events {
		for _, o := range s.observers {
			o(e)
		}
	}
	return nil
}

// Rollback aborts the transaction and discards buffered events. It works
// on any open session, including one whose chain failed.
func (s *Session) Rollback() error {
	if s.state != stateOpen {
		return s.closedError("rollback")
	}
	s.state = stateRolledBack
	s.pending = nil
	return s.tx.Rollback()
}

func (s *Session) closedError(op string) error {
	return &errs.Error{
		Code:    errs.SessionClosed,
		Op:      op,
		Message: "session already " + s.state.String(),
	}
}

// run executes one chained operation: skipped after a failure, rejected
// after commit or rollback, and its result queued on success.
func (s *Session) run(ctx context.Context, op string, kind model.Kind, fn func() (any, error)) *Session {
	if s.state != stateOpen {
		s.err = s.closedError(op)
		return s
	}
	if s.err != nil {
		return s
	}

	v, err := fn()
	if err != nil {
		s.err = errs.WithOp(err, op, string(kind), model.TableName(kind))
		s.logger.DebugContext(ctx, "operation failed", "op", op, "kind", kind, "error", err)
		return s
	}
	if _, skip := v.(noResult); !skip {
		s.queue.Push(v)
	}
	return s
}

// noResult marks operations that queue nothing.
type noResult struct{}

// emit buffers an event until commit.
func (s *Session) emit(t EventType, e *model.Entity) {
	if e == nil {
		return
	}
	s.pending = append(s.pending, Event{Type: t, Kind: e.Kind(), Entity: e})
}
