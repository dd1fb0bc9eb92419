package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nopg/internal/migrate"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/testutil"
)

// openTestStore opens an empty SQLite store in a temp dir with a
// deterministic clock and id generator.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), Config{Driver: "sqlite3", DSN: path},
		WithClock(testutil.NewSteppingClock().Now),
		WithIDGenerator(testutil.NewSequenceIDGenerator()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestStore opens a store with the full table layout applied.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = migrate.NewEngine(migrate.Builtin()).Upgrade(ctx, tx, migrate.Latest)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return s
}

// beginTestTx opens a transaction rolled back at cleanup unless committed.
func beginTestTx(t *testing.T, s *Store) *Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		if !tx.done {
			tx.Rollback()
		}
	})
	return tx
}

// mustEntity builds an entity from caller data.
func mustEntity(t *testing.T, kind model.Kind, data map[string]any) *model.Entity {
	t.Helper()
	e, err := model.NewFromData(kind, data)
	require.NoError(t, err)
	return e
}
