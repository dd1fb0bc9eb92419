package migrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/querysql"
	"github.com/roach88/nopg/internal/store"
)

// fakeHandle records what a pass does without a database.
type fakeHandle struct {
	exists   bool
	stored   any
	applied  []int
	recorded []int64
	failExec error
}

func (h *fakeHandle) Dialect() querysql.Dialect { return querysql.SQLite{} }

func (h *fakeHandle) Exec(ctx context.Context, query string, params ...any) error {
	return h.failExec
}

func (h *fakeHandle) Execute(ctx context.Context, query string, params ...any) ([]model.Row, error) {
	return []model.Row{{"version": h.stored}}, nil
}

func (h *fakeHandle) TableExists(ctx context.Context, table string) (bool, error) {
	return h.exists, nil
}

func (h *fakeHandle) Insert(ctx context.Context, e *model.Entity) (*model.Entity, error) {
	h.recorded = append(h.recorded, e.Version())
	return e, nil
}

func trackingStep(version int) Step {
	return Step{
		Version: version,
		Source:  fmt.Sprintf("test/%04d", version),
		Apply: func(ctx context.Context, h Handle) error {
			fh := h.(*fakeHandle)
			fh.applied = append(fh.applied, version)
			return nil
		},
	}
}

func TestUpgrade_AppliesPendingStepsInOrder(t *testing.T) {
	h := &fakeHandle{exists: true, stored: int64(2)}
	engine := NewEngine(NewRegistry(trackingStep(5), trackingStep(3), trackingStep(4)))

	prev, err := engine.Upgrade(context.Background(), h, 5)
	require.NoError(t, err)

	assert.Equal(t, 2, prev)
	assert.Equal(t, []int{3, 4, 5}, h.applied)
	assert.Equal(t, []int64{5}, h.recorded)
}

func TestUpgrade_TargetBelowCurrentRejected(t *testing.T) {
	h := &fakeHandle{exists: true, stored: int64(2)}
	engine := NewEngine(NewRegistry(trackingStep(3), trackingStep(4), trackingStep(5)))

	_, err := engine.Upgrade(context.Background(), h, 1)
	require.Error(t, err)

	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 2, rangeErr.Current)
	assert.Equal(t, 1, rangeErr.Target)
	assert.True(t, errs.IsVersionRange(err))
	assert.Empty(t, h.applied)
	assert.Empty(t, h.recorded)
}

func TestUpgrade_NoPendingStepsIsNoop(t *testing.T) {
	h := &fakeHandle{exists: true, stored: int64(5)}
	engine := NewEngine(NewRegistry(trackingStep(5)))

	prev, err := engine.Upgrade(context.Background(), h, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, prev)
	assert.Empty(t, h.applied)
	assert.Empty(t, h.recorded)
}

func TestUpgrade_FreshStoreStartsAtMinusOne(t *testing.T) {
	h := &fakeHandle{exists: false}
	engine := NewEngine(NewRegistry(trackingStep(0), trackingStep(1)))

	prev, err := engine.Upgrade(context.Background(), h, 1)
	require.NoError(t, err)
	assert.Equal(t, -1, prev)
	assert.Equal(t, []int{0, 1}, h.applied)
	assert.Equal(t, []int64{1}, h.recorded)
}

func TestUpgrade_StepFailureAbortsPass(t *testing.T) {
	h := &fakeHandle{exists: true, stored: int64(0)}
	boom := errors.New("boom")
	failing := Step{Version: 2, Source: "test/0002_broken", Apply: func(context.Context, Handle) error { return boom }}
	engine := NewEngine(NewRegistry(trackingStep(1), failing, trackingStep(3)))

	_, err := engine.Upgrade(context.Background(), h, 3)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Version)
	assert.Equal(t, "test/0002_broken", stepErr.Source)
	assert.ErrorIs(t, err, boom)
	assert.True(t, errs.IsMigrationStep(err))
	assert.Contains(t, err.Error(), "test/0002_broken")

	assert.Equal(t, []int{1}, h.applied)
	assert.Empty(t, h.recorded, "no version recorded after a failed step")
}

func TestUpgrade_MissingStep(t *testing.T) {
	h := &fakeHandle{exists: true, stored: int64(0)}
	engine := NewEngine(NewRegistry(trackingStep(1), trackingStep(3)))

	_, err := engine.Upgrade(context.Background(), h, 3)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 2, stepErr.Version)
	assert.Empty(t, h.applied)
}

func TestRegistry_DuplicateVersionPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry(trackingStep(1), trackingStep(1))
	})
}

func TestRegistry_Latest(t *testing.T) {
	assert.Equal(t, -1, NewRegistry().Latest())
	assert.Equal(t, Latest, Builtin().Latest())
	assert.Equal(t, []int{0, 1, 2, 3}, Builtin().Versions())
}

func TestBuiltin_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	engine := NewEngine(Builtin())

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	v, err := CurrentVersion(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	prev, err := engine.Upgrade(ctx, tx, Latest)
	require.NoError(t, err)
	assert.Equal(t, -1, prev)
	require.NoError(t, tx.Commit())

	// A second pass is a no-op.
	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	prev, err = engine.Upgrade(ctx, tx, Latest)
	require.NoError(t, err)
	assert.Equal(t, Latest, prev)

	v, err = CurrentVersion(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, Latest, v)
}

func TestBuiltin_RolledBackStepLeavesVersion(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = NewEngine(Builtin()).Upgrade(ctx, tx, 1)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	reg := Builtin()
	reg.Register(Step{Version: 4, Source: "test/0004_bad_sql", Apply: func(ctx context.Context, h Handle) error {
		return h.Exec(ctx, "CREATE TABLE broken (")
	}})

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	_, err = NewEngine(reg).Upgrade(ctx, tx, 4)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	v, err := CurrentVersion(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
