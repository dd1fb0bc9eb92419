// Package migrate evolves the table layout through ordered upgrade steps.
//
// The stored schema version is the maximum recorded SchemaVersion, or -1
// when the schema_version table does not exist yet. Upgrading to a target
// applies every step above the stored version in ascending order and then
// records the target as a new SchemaVersion row. Steps are opaque: each one
// receives the open transaction and issues whatever statements it needs.
//
// The whole pass runs inside the caller's transaction. A failing step
// aborts the pass before the version is recorded; rolling the transaction
// back leaves the stored version unchanged.
package migrate
