// Package database opens the bridge's SQLite file and keeps its schema
// current.
//
// The bridge stores one kind of data here: the state history of each
// thermostat (see package history). The file is opened with a single
// connection, WAL journaling and a busy timeout, which suits one writer
// (the bridge) and occasional readers.
//
// Schema changes live in the migrations package as paired files:
//
//	20260118_120000_state_history.up.sql
//	20260118_120000_state_history.down.sql
//
// Migrate applies pending up files in version order, one transaction each,
// and records them in schema_migrations. Rollback reverts the newest one.
package database
