package migrate

import (
	"context"
	"fmt"
)

// Builtin returns the registry of the layout this package ships.
//
//	0  schema_version, types, documents
//	1  attachments
//	2  libs
//	3  lookup indexes
func Builtin() *Registry {
	return NewRegistry(
		Step{Version: 0, Source: "builtin/0000_core", Apply: coreTables},
		Step{Version: 1, Source: "builtin/0001_attachments", Apply: attachmentsTable},
		Step{Version: 2, Source: "builtin/0002_libs", Apply: libsTable},
		Step{Version: 3, Source: "builtin/0003_indexes", Apply: indexes},
	)
}

// Latest is the newest builtin layout version.
const Latest = 3

func coreTables(ctx context.Context, h Handle) error {
	d := h.Dialect()
	return execAll(ctx, h,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS schema_version (
	id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	meta %[1]s NOT NULL DEFAULT '{}',
	created %[2]s NOT NULL
)`, d.JSONType(), d.TimestampType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS types (
	id TEXT PRIMARY KEY,
	name TEXT UNIQUE,
	schema %[1]s,
	validator TEXT,
	meta %[1]s NOT NULL DEFAULT '{}',
	created %[2]s NOT NULL,
	updated %[2]s NOT NULL
)`, d.JSONType(), d.TimestampType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	content %[1]s NOT NULL DEFAULT '{}',
	types_id TEXT REFERENCES types(id),
	created %[2]s NOT NULL,
	updated %[2]s NOT NULL
)`, d.JSONType(), d.TimestampType()),
	)
}

func attachmentsTable(ctx context.Context, h Handle) error {
	d := h.Dialect()
	return execAll(ctx, h,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS attachments (
	id TEXT PRIMARY KEY,
	documents_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content %[1]s,
	meta %[2]s NOT NULL DEFAULT '{}',
	created %[3]s NOT NULL,
	updated %[3]s NOT NULL
)`, d.BlobType(), d.JSONType(), d.TimestampType()),
	)
}

func libsTable(ctx context.Context, h Handle) error {
	d := h.Dialect()
	return execAll(ctx, h,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS libs (
	id TEXT PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	content TEXT,
	content_type TEXT,
	meta %[1]s NOT NULL DEFAULT '{}',
	created %[2]s NOT NULL,
	updated %[2]s NOT NULL
)`, d.JSONType(), d.TimestampType()),
	)
}

func indexes(ctx context.Context, h Handle) error {
	return execAll(ctx, h,
		"CREATE INDEX IF NOT EXISTS idx_documents_types_id ON documents(types_id)",
		"CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created, id)",
		"CREATE INDEX IF NOT EXISTS idx_attachments_documents_id ON attachments(documents_id)",
	)
}

func execAll(ctx context.Context, h Handle, statements ...string) error {
	for _, stmt := range statements {
		if err := h.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
