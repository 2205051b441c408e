// Package postgres provides PostgreSQL implementations of the store
// interfaces. The server uses it to persist curriculum queue snapshots and
// generated notes so workspaces survive a restart.
package postgres
