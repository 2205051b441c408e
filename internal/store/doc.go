// Package store defines interfaces for curriculum persistence: queue
// snapshots and generated notes. These interfaces abstract the underlying
// data storage mechanism from the engine, so the server can keep state in
// PostgreSQL while the CLI keeps it in a local SQLite file.
package store
