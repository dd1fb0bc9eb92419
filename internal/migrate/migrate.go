package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/querysql"
)

// Handle is the transaction a migration pass runs in.
type Handle interface {
	Dialect() querysql.Dialect
	Exec(ctx context.Context, query string, params ...any) error
	Execute(ctx context.Context, query string, params ...any) ([]model.Row, error)
	TableExists(ctx context.Context, table string) (bool, error)
	Insert(ctx context.Context, e *model.Entity) (*model.Entity, error)
}

// Step upgrades the layout from Version-1 to Version.
type Step struct {
	Version int

	// Source identifies the step in errors and logs.
	Source string

	Apply func(ctx context.Context, h Handle) error
}

// Registry holds steps indexed by version.
type Registry struct {
	steps map[int]Step
}

// NewRegistry returns a registry holding steps. Registering two steps for
// one version panics.
func NewRegistry(steps ...Step) *Registry {
	r := &Registry{steps: make(map[int]Step, len(steps))}
	for _, s := range steps {
		r.Register(s)
	}
	return r
}

// Register adds a step.
func (r *Registry) Register(s Step) {
	if s.Version < 0 {
		panic(fmt.Sprintf("migrate: step %q has negative version %d", s.Source, s.Version))
	}
	if prev, ok := r.steps[s.Version]; ok {
		panic(fmt.Sprintf("migrate: version %d registered twice (%s, %s)", s.Version, prev.Source, s.Source))
	}
	r.steps[s.Version] = s
}

// Latest is the highest registered version, or -1 for an empty registry.
func (r *Registry) Latest() int {
	latest := -1
	for v := range r.steps {
		if v > latest {
			latest = v
		}
	}
	return latest
}

// Versions lists the registered versions in ascending order.
func (r *Registry) Versions() []int {
	vs := make([]int, 0, len(r.steps))
	for v := range r.steps {
		vs = append(vs, v)
	}
	sort.Ints(vs)
	return vs
}

// Engine runs upgrade passes.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger steps are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an engine over registry.
func NewEngine(registry *Registry, opts ...Option) *Engine {
	e := &Engine{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Latest is the version Upgrade targets by default.
func (e *Engine) Latest() int { return e.registry.Latest() }

// Upgrade brings the stored layout to target and returns the version the
// store held before. The stored version must lie in [-1, target] and every
// version between it and target needs a registered step.
func (e *Engine) Upgrade(ctx context.Context, h Handle, target int) (int, error) {
	current, err := CurrentVersion(ctx, h)
	if err != nil {
		return current, err
	}
	if current < -1 || current > target {
		return current, &RangeError{Current: current, Target: target}
	}
	if current == target {
		e.logger.DebugContext(ctx, "schema up to date", "version", current)
		return current, nil
	}

	pending := make([]Step, 0, target-current)
	for v := current + 1; v <= target; v++ {
		s, ok := e.registry.steps[v]
		if !ok {
			return current, &StepError{Version: v, Source: "<missing>", Err: fmt.Errorf("no step registered for version %d", v)}
		}
		pending = append(pending, s)
	}

	for _, s := range pending {
		e.logger.InfoContext(ctx, "applying migration", "version", s.Version, "source", s.Source)
		if err := s.Apply(ctx, h); err != nil {
			return current, &StepError{Version: s.Version, Source: s.Source, Err: err}
		}
	}

	if err := recordVersion(ctx, h, target); err != nil {
		return current, err
	}
	e.logger.InfoContext(ctx, "schema upgraded", "from", current, "to", target)
	return current, nil
}

// CurrentVersion reads the stored version: the maximum recorded value, or
// -1 when the version table does not exist.
func CurrentVersion(ctx context.Context, h Handle) (int, error) {
	table := model.TableName(model.KindSchemaVersion)
	exists, err := h.TableExists(ctx, table)
	if err != nil {
		return -1, fmt.Errorf("read schema version: %w", err)
	}
	if !exists {
		return -1, nil
	}
	rows, err := h.Execute(ctx, "SELECT MAX(version) AS version FROM "+table)
	if err != nil {
		return -1, fmt.Errorf("read schema version: %w", err)
	}
	if len(rows) == 0 || rows[0]["version"] == nil {
		return -1, nil
	}
	v, err := model.ToInt(rows[0]["version"])
	if err != nil {
		return -1, fmt.Errorf("read schema version: %w", err)
	}
	return int(v), nil
}

func recordVersion(ctx context.Context, h Handle, version int) error {
	v := model.New(model.KindSchemaVersion)
	if err := v.SetAttr("version", int64(version)); err != nil {
		return err
	}
	if _, err := h.Insert(ctx, v); err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	return nil
}
