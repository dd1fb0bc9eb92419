package querysql

import (
	"fmt"
	"strconv"
)

// Dialect isolates the SQL differences between supported backends: bind
// placeholders, JSON extraction from the metadata bag, and column types used
// by migrations.
//
// Keys passed to the extraction methods have already been validated by
// queryir.ValidateKey and are safe to quote.
type Dialect interface {
	// Name is the database/sql driver name ("sqlite3", "pgx").
	Name() string

	// Placeholder returns the bind marker for the n-th parameter (1-based).
	Placeholder(n int) string

	// BagText extracts key as text for text comparison.
	BagText(column, key string) string

	// BagNumeric extracts key cast to a number.
	BagNumeric(column, key string) string

	// BagBool extracts key in a form that compares equal to "true"/"false".
	BagBool(column, key string) string

	// BagOrder extracts key for ORDER BY.
	BagOrder(column, key string) string

	// TableExistsSQL counts tables named by its single parameter.
	TableExistsSQL() string

	// JSONType, BlobType, TimestampType name column types for DDL.
	JSONType() string
	BlobType() string
	TimestampType() string
}

// SQLite targets SQLite 3.38+ (JSON ->> operator) through mattn/go-sqlite3.
type SQLite struct{}

func (SQLite) Name() string           { return "sqlite3" }
func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) BagText(column, key string) string {
	return fmt.Sprintf("CAST(%s->>'%s' AS TEXT)", column, key)
}

func (SQLite) BagNumeric(column, key string) string {
	return fmt.Sprintf("CAST(%s->>'%s' AS NUMERIC)", column, key)
}

// BagBool uses the JSON rendering (->) since ->> yields 1/0 for booleans.
func (SQLite) BagBool(column, key string) string {
	return fmt.Sprintf("%s->'%s'", column, key)
}

func (SQLite) BagOrder(column, key string) string {
	return fmt.Sprintf("%s->>'%s'", column, key)
}

func (SQLite) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (SQLite) JSONType() string      { return "TEXT" }
func (SQLite) BlobType() string      { return "BLOB" }
func (SQLite) TimestampType() string { return "TIMESTAMP" }

// Postgres targets PostgreSQL 9.4+ (jsonb) through pgx's database/sql driver.
type Postgres struct{}

func (Postgres) Name() string             { return "pgx" }
func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) BagText(column, key string) string {
	return fmt.Sprintf("%s->>'%s'", column, key)
}

func (Postgres) BagNumeric(column, key string) string {
	return fmt.Sprintf("(%s->>'%s')::numeric", column, key)
}

func (Postgres) BagBool(column, key string) string {
	return fmt.Sprintf("%s->>'%s'", column, key)
}

// BagOrder uses jsonb ordering, which sorts numbers numerically.
func (Postgres) BagOrder(column, key string) string {
	return fmt.Sprintf("%s->'%s'", column, key)
}

func (Postgres) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (Postgres) JSONType() string      { return "JSONB" }
func (Postgres) BlobType() string      { return "BYTEA" }
func (Postgres) TimestampType() string { return "TIMESTAMPTZ" }

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	case "pgx", "postgres", "postgresql":
		return Postgres{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}
