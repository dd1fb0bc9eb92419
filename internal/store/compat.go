package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/nopg/internal/errs"
	"github.com/roach88/nopg/internal/querysql"
)

// Minimum supported server versions.
const (
	// MinSQLiteVersion introduced the JSON ->> operator.
	MinSQLiteVersion = "3.38.0"

	// MinPostgresVersion introduced jsonb (server_version_num form).
	MinPostgresVersion = 90400
)

// CheckCompatibility verifies the server supports every construct the
// compiler emits.
func (t *Tx) CheckCompatibility(ctx context.Context) error {
	switch t.Dialect().(type) {
	case querysql.SQLite:
		v, err := t.scalar(ctx, "SELECT sqlite_version()")
		if err != nil {
			return err
		}
		if compareVersions(v, MinSQLiteVersion) < 0 {
			return errs.New(errs.Unsupported, "SQLite %s is older than %s", v, MinSQLiteVersion)
		}
	case querysql.Postgres:
		v, err := t.scalar(ctx, "SHOW server_version_num")
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse server_version_num %q: %w", v, err)
		}
		if n < MinPostgresVersion {
			return errs.New(errs.Unsupported, "PostgreSQL server_version_num %d is older than %d", n, MinPostgresVersion)
		}
	}
	return nil
}

func (t *Tx) scalar(ctx context.Context, query string) (string, error) {
	rows, err := t.Execute(ctx, query)
	if err != nil {
		return "", err
	}
	if len(rows) != 1 {
		return "", fmt.Errorf("%s: expected one row, got %d", query, len(rows))
	}
	for _, v := range rows[0] {
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		default:
			return fmt.Sprint(s), nil
		}
	}
	return "", fmt.Errorf("%s: no columns", query)
}

// compareVersions compares dotted numeric versions.
func compareVersions(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y int
		if i < len(pa) {
			x, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			y, _ = strconv.Atoi(pb[i])
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}
