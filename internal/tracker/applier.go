package tracker

import (
	"errors"
	"time"
)

// BulkApplier drains a StagingBuffer through a Session as one transaction.
//
// A BulkApplier holds no per-cycle state and may be shared between buffers.
type BulkApplier[T Record] struct {
	logger Logger
	ids    CycleIDGenerator
	now    func() time.Time
}

type applierConfig struct {
	logger Logger
	ids    CycleIDGenerator
	now    func() time.Time
}

// Option configures a BulkApplier.
type Option func(*applierConfig)

// WithLogger sets the logger used for progress and failure reporting.
func WithLogger(l Logger) Option {
	return func(c *applierConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCycleIDs sets the cycle id generator. Defaults to UUIDv7Generator.
func WithCycleIDs(g CycleIDGenerator) Option {
	return func(c *applierConfig) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithClock sets the time source used for ApplyResult.Elapsed.
func WithClock(now func() time.Time) Option {
	return func(c *applierConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// NewBulkApplier creates an applier. Without options it logs nowhere and
// stamps cycles with UUIDv7 ids.
func NewBulkApplier[T Record](opts ...Option) *BulkApplier[T] {
	cfg := applierConfig{
		logger: discardLogger,
		ids:    UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &BulkApplier[T]{logger: cfg.logger, ids: cfg.ids, now: cfg.now}
}

// Apply applies every pending change in buffer through session.
//
// Inserts then updates are merged in staging order; any merge failure rolls
// the batch back and skips the deletes. Deletes are attempted individually
// and their failures are collected in the result. Commit failure rolls back.
//
// Whatever happens, the staged deletes are appended to history, the pending
// sequences are cleared and the session is closed before Apply returns.
// Inserts and updates are appended to history only on commit.
func (a *BulkApplier[T]) Apply(session Session[T], buffer *StagingBuffer[T]) (res ApplyResult) {
	start := a.now()
	snap := buffer.Pending()

	res = ApplyResult{
		CycleID: a.ids.Generate(),
		Staged: Counts{
			Inserts: len(snap.Inserts),
			Updates: len(snap.Updates),
			Deletes: len(snap.Deletes),
		},
	}

	a.logger.Info("apply started",
		"cycle", res.CycleID,
		"inserts", res.Staged.Inserts,
		"updates", res.Staged.Updates,
		"deletes", res.Staged.Deletes,
	)

	defer func() {
		buffer.recordDeletes(snap.Deletes)
		buffer.ClearPending()
		if err := guard("close", func() error { session.Close(); return nil }); err != nil {
			a.logger.Error("session close failed", "cycle", res.CycleID, "error", err)
		}
		res.Elapsed = a.now().Sub(start)
	}()

	if err := a.run(session, snap, &res); err != nil {
		res.Status = StatusRolledBack
		res.Err = err
		if rbErr := guard("rollback", session.Rollback); rbErr != nil {
			res.Err = errors.Join(err, rollbackError(rbErr))
		}
		a.logger.Error("apply rolled back", "cycle", res.CycleID, "error", res.Err)
		return res
	}

	res.Status = StatusCommitted
	buffer.recordMerged(snap.Inserts, snap.Updates)
	a.logger.Info("apply committed",
		"cycle", res.CycleID,
		"merged", res.Merged,
		"deletes_attempted", res.DeletesAttempted,
		"deletes_failed", res.DeletesFailed,
	)
	return res
}

// run performs the merge loop, the delete loop and the commit.
// A non-nil error means the transaction must be rolled back.
func (a *BulkApplier[T]) run(session Session[T], snap Changes[T], res *ApplyResult) error {
	merges := make([]T, 0, len(snap.Inserts)+len(snap.Updates))
	merges = append(merges, snap.Inserts...)
	merges = append(merges, snap.Updates...)

	for i, rec := range merges {
		err := guard("merge", func() error { return session.MergeOrInsert(rec) })
		if err != nil {
			var ae *ApplyError
			if errors.As(err, &ae) && ae.Code == ErrCodeSessionPanic {
				ae.Identity = rec.Identity()
				ae.Index = i
				return ae
			}
			return mergeError(i, rec.Identity(), err)
		}
		res.Merged++
	}

	for i, rec := range snap.Deletes {
		res.DeletesAttempted++
		err := guard("delete", func() error { return session.Delete(rec) })
		var ae *ApplyError
		if errors.As(err, &ae) && ae.Code == ErrCodeSessionPanic {
			ae.Identity = rec.Identity()
			ae.Index = i
			return ae
		}

		outcome := DeleteOutcome{Index: i, Identity: rec.Identity()}
		if err != nil {
			outcome.Err = deleteError(i, rec.Identity(), err)
			res.DeletesFailed++
			a.logger.Error("delete failed", "cycle", res.CycleID, "record", rec.Identity(), "error", err)
		} else {
			res.DeletesConfirmed++
		}
		res.Deletes = append(res.Deletes, outcome)
	}

	if err := guard("commit", session.Commit); err != nil {
		return commitError(err)
	}
	return nil
}

// guard runs fn and converts a panic into a SESSION_PANIC error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(op, r)
		}
	}()
	return fn()
}
