package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/jsonschema"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/ir"
	"github.com/roach88/nopg/internal/model"
)

// Rule names reported on validation failures.
const (
	RuleSchema    = "schema"
	RuleValidator = "validator"
)

// Validator checks a candidate document against a TypeDef. libs are the
// sources of the CUE libraries in scope.
type Validator interface {
	Validate(ctx context.Context, typ *model.Entity, fields map[string]any, libs []string) error
}

// Checker is implemented by validators that can reject a malformed TypeDef
// before it is stored.
type Checker interface {
	Check(ctx context.Context, typ *model.Entity, libs []string) error
}

// CUE validates with the CUE evaluator.
//
// A cue.Context is not safe for concurrent use, so evaluation is
// serialized. Translated schemas are cached by their canonical JSON.
type CUE struct {
	mu       sync.Mutex
	ctx      *cue.Context
	schemas  map[string]cue.Value
	builtins map[string]Func
	logger   *slog.Logger
}

// Option configures a CUE validator.
type Option func(*CUE)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *CUE) { c.logger = l }
}

// WithBuiltin allow-lists a named Go predicate.
func WithBuiltin(name string, fn Func) Option {
	return func(c *CUE) { c.builtins[name] = fn }
}

// New returns a CUE validator with the default builtins registered.
func New(opts ...Option) *CUE {
	c := &CUE{
		ctx:      cuecontext.New(),
		schemas:  map[string]cue.Value{},
		builtins: map[string]Func{},
		logger:   slog.Default(),
	}
	for name, fn := range defaultBuiltins {
		c.builtins[name] = fn
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate implements Validator. The candidate must satisfy the schema and
// then the custom validator; the first failing rule is reported.
func (c *CUE) Validate(ctx context.Context, typ *model.Entity, fields map[string]any, libs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := typeLabel(typ)
	if s := typ.Schema(); s != nil {
		if err := c.validateSchema(s, fields); err != nil {
			c.logger.DebugContext(ctx, "schema check failed", "type", name, "error", err)
			return failure(name, RuleSchema, "failed schema check", err)
		}
	}

	v := typ.Validator()
	if v.IsZero() {
		return nil
	}
	var err error
	switch v.Lang {
	case model.ValidatorBuiltin:
		err = c.runBuiltin(v.Source, fields)
	default:
		err = c.runRule(name, v.Source, fields, libs)
	}
	if err != nil {
		c.logger.DebugContext(ctx, "custom type check failed", "type", name, "error", err)
		return failure(name, RuleValidator, "failed custom type check", err)
	}
	return nil
}

// Check implements Checker: the schema must translate and the validator
// must compile (or name a registered builtin).
func (c *CUE) Check(ctx context.Context, typ *model.Entity, libs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := typeLabel(typ)
	if s := typ.Schema(); s != nil {
		if _, err := c.compileSchema(s); err != nil {
			return errs.Wrap(errs.InvalidArgument, err, "type %s: invalid schema", name)
		}
	}
	v := typ.Validator()
	if v.IsZero() {
		return nil
	}
	if v.Lang == model.ValidatorBuiltin {
		if _, ok := c.builtins[v.Source]; !ok {
			return errs.Invalid("type %s: unknown builtin validator %q", name, v.Source)
		}
		return nil
	}
	if _, err := c.compileRule(name, v.Source, libs); err != nil {
		return errs.Wrap(errs.InvalidArgument, err, "type %s: invalid validator", name)
	}
	return nil
}

// Builtins lists the registered builtin names.
func (c *CUE) Builtins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ir.SortedKeys(c.builtins)
}

func (c *CUE) validateSchema(schema any, fields map[string]any) error {
	sv, err := c.compileSchema(schema)
	if err != nil {
		return err
	}
	return c.unify(sv, fields)
}

// compileSchema translates a JSON-Schema document to a CUE value.
func (c *CUE) compileSchema(schema any) (cue.Value, error) {
	key, err := ir.CanonicalString(schema)
	if err != nil {
		return cue.Value{}, err
	}
	if v, ok := c.schemas[key]; ok {
		return v, nil
	}

	raw := c.ctx.CompileString(key, cue.Filename("schema.json"))
	if err := raw.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("parse schema: %w", err)
	}
	file, err := jsonschema.Extract(raw, &jsonschema.Config{})
	if err != nil {
		return cue.Value{}, fmt.Errorf("translate schema: %w", err)
	}
	v := c.ctx.BuildFile(file)
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("build schema: %w", err)
	}
	c.schemas[key] = v
	return v, nil
}

func (c *CUE) runRule(name, source string, fields map[string]any, libs []string) error {
	rule, err := c.compileRule(name, source, libs)
	if err != nil {
		return err
	}
	return c.unify(rule, fields)
}

// compileRule compiles a CUE validator with the libraries in front of it.
func (c *CUE) compileRule(name, source string, libs []string) (cue.Value, error) {
	var b strings.Builder
	for _, lib := range libs {
		b.WriteString(lib)
		b.WriteString("\n\n")
	}
	b.WriteString(source)

	v := c.ctx.CompileString(b.String(), cue.Filename(name+".cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, err
	}
	return v, nil
}

func (c *CUE) runBuiltin(name string, fields map[string]any) error {
	fn, ok := c.builtins[name]
	if !ok {
		return fmt.Errorf("builtin validator %q is not registered", name)
	}
	return fn(fields)
}

// unify checks that fields satisfy constraint with every value concrete.
func (c *CUE) unify(constraint cue.Value, fields map[string]any) error {
	doc := c.ctx.Encode(fields)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode candidate: %w", err)
	}
	return constraint.Unify(doc).Validate(cue.Concrete(true))
}

// failure builds the ValidationFailure, one violation per CUE error.
func failure(typeName, rule, message string, err error) error {
	var violations []string
	for _, e := range cueerrors.Errors(err) {
		violations = append(violations, e.Error())
	}
	if len(violations) == 0 {
		violations = []string{err.Error()}
	}
	return &errs.Error{
		Code:       errs.ValidationFailure,
		Target:     typeName,
		Message:    rule + ": " + message,
		Violations: violations,
	}
}

func typeLabel(typ *model.Entity) string {
	if n := typ.Name(); n != "" {
		return n
	}
	if id := typ.ID(); id != "" {
		return id
	}
	return "anonymous"
}
