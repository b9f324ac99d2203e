package tracker

import "time"

// Status is the overall outcome of an apply cycle.
type Status string

const (
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// DeleteOutcome is the result of one attempted delete.
type DeleteOutcome struct {
	Index    int    // position in the cycle's delete snapshot
	Identity string // record identity
	Err      error  // nil when the delete succeeded
}

// Deleted reports whether the delete succeeded.
func (o DeleteOutcome) Deleted() bool {
	return o.Err == nil
}

// ApplyResult describes one apply cycle.
type ApplyResult struct {
	CycleID string
	Status  Status

	// Staged holds the pending counts at the start of the cycle.
	Staged Counts

	// Merged is the number of MergeOrInsert calls that succeeded.
	// On a rolled-back cycle these were discarded with the transaction.
	Merged int

	DeletesAttempted int
	DeletesFailed    int
	DeletesConfirmed int

	// Deletes holds one outcome per attempted delete, in staging order.
	Deletes []DeleteOutcome

	// Err is the batch-level error that caused a rollback, or nil.
	Err error

	Elapsed time.Duration
}

// Committed reports whether the cycle committed.
func (r ApplyResult) Committed() bool {
	return r.Status == StatusCommitted
}

// FailedDeletes returns the outcomes of deletes that failed.
func (r ApplyResult) FailedDeletes() []DeleteOutcome {
	var failed []DeleteOutcome
	for _, o := range r.Deletes {
		if !o.Deleted() {
			failed = append(failed, o)
		}
	}
	return failed
}
