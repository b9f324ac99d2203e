package tracker

// Session is the transactional capability an apply cycle runs through.
//
// A transaction is begun implicitly by the first operation. Close must be
// idempotent and safe to call in any state; it discards an uncommitted
// transaction.
type Session[T any] interface {
	// MergeOrInsert overwrites the stored record with the same identity,
	// or inserts it when absent.
	MergeOrInsert(record T) error

	// Delete removes the stored record with the same identity.
	// An error here concerns this record only.
	Delete(record T) error

	Commit() error
	Rollback() error
	Close()
}
