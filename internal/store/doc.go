// Package store is the relational connection primitive behind sessions.
//
// A Store owns one *sql.DB for a supported driver (mattn/go-sqlite3 or
// pgx). Begin opens a Tx, which exposes the raw Execute/Exec primitives
// plus the CRUD operations used by sessions: Select, Insert, Update and
// Delete, each parameterized by entity kind through the model registry and
// compiled by querysql.
//
// # Managed attributes
//
// Insert assigns id (UUIDv7 unless one is set), createdAt and updatedAt.
// Update assigns updatedAt only when the diff is non-empty. Clock and id
// generator are replaceable for deterministic tests.
//
// # SQLite configuration
//
// Set on every pooled connection through the DSN:
//
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL
//   - 5-second busy timeout, so a second writer waits for the first
//   - foreign key enforcement
//
// File databases use a connection pool, so sessions run side by side.
// ":memory:" keeps a single connection, since each connection would
// otherwise see its own empty database.
package store
