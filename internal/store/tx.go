package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/querysql"
)

// ErrTxDone is returned by any call on a committed or rolled-back Tx.
var ErrTxDone = errors.New("transaction already finished")

// Tx is one database transaction.
//
// A Tx has a single owner and is not safe for concurrent use: statements
// are issued strictly one after another.
type Tx struct {
	tx    *sql.Tx
	store *Store
	done  bool
}

// Dialect returns the SQL dialect of the connection.
func (t *Tx) Dialect() querysql.Dialect { return t.store.dialect }

// Compiler returns the statement compiler for this connection.
func (t *Tx) Compiler() *querysql.Compiler { return t.store.compiler }

// Execute runs a statement and returns every produced row.
func (t *Tx) Execute(ctx context.Context, query string, params ...any) ([]model.Row, error) {
	if t.done {
		return nil, ErrTxDone
	}
	t.store.logger.DebugContext(ctx, "execute", "sql", query, "params", params)

	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Exec runs a statement that produces no rows (DDL, bookkeeping).
func (t *Tx) Exec(ctx context.Context, query string, params ...any) error {
	if t.done {
		return ErrTxDone
	}
	t.store.logger.DebugContext(ctx, "exec", "sql", query, "params", params)

	if _, err := t.tx.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// TableExists reports whether a table exists in the current schema.
func (t *Tx) TableExists(ctx context.Context, table string) (bool, error) {
	rows, err := t.Execute(ctx, t.Dialect().TableExistsSQL(), table)
	if err != nil {
		return false, fmt.Errorf("table exists %s: %w", table, err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	for _, v := range rows[0] {
		n, err := toInt64(v)
		if err != nil {
			return false, fmt.Errorf("table exists %s: %w", table, err)
		}
		return n > 0, nil
	}
	return false, nil
}

// scanRows reads every row into a column-keyed map.
func scanRows(rows *sql.Rows) ([]model.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := []model.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		var i int64
		_, err := fmt.Sscan(string(n), &i)
		return i, err
	case string:
		var i int64
		_, err := fmt.Sscan(n, &i)
		return i, err
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}
