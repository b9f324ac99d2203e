// Package store runs tracker sessions against a SQL database.
//
// A Store wraps a *sql.DB opened for one of the supported dialects:
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo, default)
//   - sqlite:  modernc.org/sqlite (pure Go)
//   - pgx:     github.com/jackc/pgx/v5/stdlib (PostgreSQL)
//
// # Sessions
//
// NewSession binds a context, a store and a model.Schema into a
// tracker.Session. The transaction is begun by the first operation.
//
//   - MergeOrInsert: INSERT ... ON CONFLICT (key) DO UPDATE SET ...
//   - Delete: DELETE ... WHERE key = ..., inside a SAVEPOINT so a failed
//     delete does not abort the surrounding transaction. Zero rows affected
//     is ErrNotFound.
//   - Commit/Rollback with no open transaction are no-ops.
//   - Close is idempotent and rolls back an open transaction.
//
// The key columns of a schema must carry a PRIMARY KEY or UNIQUE constraint
// in the target table; ON CONFLICT relies on it.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: SQLite has a single writer
package store
