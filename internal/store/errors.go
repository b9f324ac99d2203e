package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
)

// SQLite primary result codes for lock contention.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// PostgreSQL SQLSTATEs that clear up when the transaction is run again.
var pgTransient = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// IsTransient reports whether err (or anything it wraps) is a driver error
// caused by contention with another writer. Running the same transaction
// again later may succeed; constraint and schema errors never qualify.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var cgo sqlite3.Error
	if errors.As(err, &cgo) {
		return cgo.Code == sqlite3.ErrBusy || cgo.Code == sqlite3.ErrLocked
	}

	var pure *sqlite.Error
	if errors.As(err, &pure) {
		switch pure.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
		return false
	}

	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		return pgTransient[pg.Code]
	}
	return false
}
