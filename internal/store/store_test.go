package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nopg/internal/querysql"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), Config{Driver: "sqlite3", DSN: path})
	require.NoError(t, err)
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	assert.Equal(t, querysql.SQLite{}, s.Dialect())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "sqlite3"})
	require.Error(t, err)
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	_, err := Open(context.Background(), Config{Driver: "sqlite3", DSN: "/nonexistent/dir/test.db"})
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := openTestStore(t)

	db := s.DB()
	require.NotNil(t, db)

	// Verify it's usable
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

func TestOpen_FileDatabaseAllowsConcurrentTx(t *testing.T) {
	s := createTestStore(t)
	first := beginTestTx(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	second, err := s.Begin(ctx)
	require.NoError(t, err, "a second transaction must not wait for the first")
	_, err = second.Execute(ctx, "SELECT COUNT(*) AS n FROM documents")
	require.NoError(t, err)
	require.NoError(t, second.Rollback())
	require.NoError(t, first.Rollback())
}

func TestOpen_MemoryDatabaseUsesOneConnection(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: "sqlite3", DSN: ":memory:", MaxOpenConns: 8})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, s.DB().Stats().MaxOpenConnections)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1", sqliteDSN("a.db"))
	assert.Equal(t, "file:a.db?cache=shared&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1",
		sqliteDSN("file:a.db?cache=shared"))
	assert.True(t, isMemoryDSN(":memory:"))
	assert.True(t, isMemoryDSN("file:x?mode=memory"))
	assert.False(t, isMemoryDSN("a.db"))
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := openTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := openTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := openTestStore(t)

	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Transaction tests

func TestTx_TableExists(t *testing.T) {
	s := createTestStore(t)
	tx := beginTestTx(t, s)
	ctx := context.Background()

	for _, table := range []string{"schema_version", "types", "documents", "attachments", "libs"} {
		exists, err := tx.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	exists, err := tx.TableExists(ctx, "revisions")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx := beginTestTx(t, s)
	_, err := tx.Insert(ctx, mustEntity(t, "Document", map[string]any{"foo": "bar"}))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	tx = beginTestTx(t, s)
	rows, err := tx.Execute(ctx, "SELECT COUNT(*) AS n FROM documents")
	require.NoError(t, err)
	n, err := toInt64(rows[0]["n"])
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestTx_FinishedTxRejectsStatements(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx := beginTestTx(t, s)
	require.NoError(t, tx.Commit())

	_, err := tx.Execute(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrTxDone)
	assert.ErrorIs(t, tx.Exec(ctx, "SELECT 1"), ErrTxDone)
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), ErrTxDone)
}

func TestCheckCompatibility_SQLite(t *testing.T) {
	s := openTestStore(t)
	tx := beginTestTx(t, s)
	assert.NoError(t, tx.CheckCompatibility(context.Background()))
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"3.38.0", "3.38.0", 0},
		{"3.45.1", "3.38.0", 1},
		{"3.37.2", "3.38.0", -1},
		{"3.38", "3.38.0", 0},
		{"10.0.0", "9.9.9", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, compareVersions(tt.a, tt.b))
		})
	}
}
