// Package database provides SQLite persistence for Gray Gate.
//
// It wraps database/sql with WAL-mode SQLite configuration, embedded
// schema migrations, and health checks. The representation registry is the
// only consumer; snapshots themselves are never persisted (the mirror is
// rebuilt from the controller on startup).
package database
