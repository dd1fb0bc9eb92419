package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/store"
	"github.com/roach88/nopg/internal/testutil"
)

// newTestDB returns an initialized SQLite-backed DB with deterministic
// timestamps and ids.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx,
		store.Config{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "nopg.db")},
		store.WithClock(testutil.NewSteppingClock().Now),
		store.WithIDGenerator(testutil.NewSequenceIDGenerator()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	db := New(st)
	s := beginSession(t, db)
	require.NoError(t, s.Init(ctx).Err())
	require.NoError(t, s.Commit())
	return db
}

// beginSession opens a session rolled back at cleanup unless finished.
func beginSession(t *testing.T, db *DB) *Session {
	t.Helper()
	s, err := db.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		if s.Open() {
			s.Rollback()
		}
	})
	return s
}

func fetchEntity(t *testing.T, s *Session) *model.Entity {
	t.Helper()
	e, ok := FetchAs[*model.Entity](s)
	require.True(t, ok, "expected an entity in the queue")
	return e
}

func fetchList(t *testing.T, s *Session) []*model.Entity {
	t.Helper()
	list, ok := FetchAs[[]*model.Entity](s)
	require.True(t, ok, "expected a result list in the queue")
	return list
}

func extra(e *model.Entity, key string) any {
	v, _ := e.Extra(key)
	return v
}
