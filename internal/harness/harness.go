package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/queryir"
	"github.com/roach88/nopg/internal/session"
	"github.com/roach88/nopg/internal/store"
	"github.com/roach88/nopg/internal/testutil"
)

// Harness executes one scenario against its own store.
type Harness struct {
	db     *session.DB
	saved  map[string]*model.Entity
	result *Result
	logger *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger for step diagnostics. Runs are silent by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create and initialize a fresh in-memory database
// 2. Run each step in its own session, checking its expectation
// 3. Evaluate assertions against delivered events and committed state
//
// The returned error reports harness failures; failed expectations are in
// the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		saved:  make(map[string]*model.Entity),
		result: NewResult(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(ctx,
		store.Config{Driver: "sqlite3", DSN: ":memory:"},
		store.WithClock(testutil.NewSteppingClock().Now),
		store.WithIDGenerator(testutil.NewSequenceIDGenerator()),
		store.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h.db = session.New(st, session.WithLogger(h.logger))
	if err := h.init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h.db, h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) init(ctx context.Context) error {
	s, err := h.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := s.Init(ctx).Err(); err != nil {
		s.Rollback()
		return err
	}
	return s.Commit()
}

// runStep executes one step in its own session. Operation errors are
// outcomes compared with the expectation, not harness failures.
func (h *Harness) runStep(ctx context.Context, i int, step Step) error {
	s, err := h.db.Begin(ctx)
	if err != nil {
		return err
	}
	s.Subscribe(func(e session.Event) {
		h.result.AddEventTrace(fmt.Sprintf("%s:%s", e.Type, e.Kind), e.Entity.ID())
	})

	if err := h.apply(ctx, s, step); err != nil {
		s.Rollback()
		return err
	}

	if opErr := s.Err(); opErr != nil {
		s.Rollback()
		code := string(errs.CodeOf(opErr))
		h.result.AddStepTrace(step.Op, code, nil)
		h.logger.DebugContext(ctx, "step failed", "step", i, "op", step.Op, "error", opErr)

		switch {
		case step.Expect == nil || step.Expect.Error == "":
			h.result.AddErrorf("steps[%d] %s: unexpected error: %v", i, step.Op, opErr)
		case step.Expect.Error != code:
			h.result.AddErrorf("steps[%d] %s: expected error %s, got %s: %v", i, step.Op, step.Expect.Error, code, opErr)
		}
		return nil
	}

	value, _ := s.Fetch()
	if err := s.Commit(); err != nil {
		return err
	}
	h.result.AddStepTrace(step.Op, "", traceValue(value))

	if step.Save != "" {
		switch v := value.(type) {
		case *model.Entity:
			h.saved[step.Save] = v
		case []*model.Entity:
			if len(v) == 0 {
				h.result.AddErrorf("steps[%d] %s: nothing to save as %q", i, step.Op, step.Save)
			} else {
				h.saved[step.Save] = v[0]
			}
		default:
			h.result.AddErrorf("steps[%d] %s: cannot save %T as %q", i, step.Op, value, step.Save)
		}
	}

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Error != "" {
		h.result.AddErrorf("steps[%d] %s: expected error %s, got success", i, step.Op, step.Expect.Error)
		return nil
	}
	for _, msg := range checkExpect(value, step.Expect) {
		h.result.AddErrorf("steps[%d] %s: %s", i, step.Op, msg)
	}
	return nil
}

// apply chains the step's operation onto s.
func (h *Harness) apply(ctx context.Context, s *session.Session, step Step) error {
	opts := queryir.Options{Order: step.Order, Fields: step.Fields}
	if step.Match != "" {
		mode, err := queryir.ParseMatchMode(step.Match)
		if err != nil {
			return err
		}
		opts.Match = mode
	}

	ref := h.saved[step.Ref]
	switch step.Op {
	case OpDeclareType:
		s.DeclareType(ctx, step.Name, step.Data)
	case OpCreateType:
		s.CreateType(ctx, step.Name, step.Data)
	case OpGetType:
		s.GetType(ctx, step.Name)
	case OpTypeExists:
		s.TypeExists(ctx, step.Name)
	case OpSearchTypes:
		s.SearchTypes(ctx, step.Predicate, opts)
	case OpCreate:
		s.Create(ctx, docType(step), step.Data)
	case OpSearch:
		s.Search(ctx, docType(step), step.Predicate, opts)
	case OpSearchSingle:
		s.SearchSingle(ctx, docType(step), step.Predicate, opts)
	case OpGetDocument:
		if ref != nil {
			s.GetDocument(ctx, ref)
		} else {
			s.GetDocument(ctx, step.Predicate)
		}
	case OpUpdate:
		s.Update(ctx, ref, step.Data)
	case OpDelete:
		s.Delete(ctx, ref)
	case OpAttach:
		var content io.Reader
		if step.Content != "" {
			content = strings.NewReader(step.Content)
		}
		s.CreateAttachment(ctx, ref, content, step.Data)
	case OpSearchAttachments:
		s.SearchAttachments(ctx, ref, step.Predicate)
	case OpImportLibrary:
		s.ImportLibrary(ctx, session.LibrarySource{
			Name:        step.Name,
			Content:     step.Content,
			ContentType: step.ContentType,
			Meta:        step.Data,
		})
	case OpSearchLibraries:
		s.SearchLibraries(ctx, step.Predicate)
	case OpMigrate:
		s.Migrate(ctx, step.Target)
	case OpLatestAppliedVersion:
		s.LatestAppliedVersion(ctx)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// docType returns the type argument for document operations: a name, or
// nil for untyped.
func docType(step Step) any {
	if step.Type == "" {
		return nil
	}
	return step.Type
}

// traceValue reduces a fetched value to something stable for the trace.
func traceValue(v any) any {
	switch val := v.(type) {
	case *model.Entity:
		return val.ID()
	case []*model.Entity:
		ids := make([]any, len(val))
		for i, e := range val {
			ids[i] = e.ID()
		}
		return ids
	default:
		return v
	}
}
