package tracker

import "sync"

// StagingBuffer holds pending and historical changes for one record type.
//
// The zero value is ready to use. Staging methods are safe for concurrent
// use and preserve call order.
type StagingBuffer[T Record] struct {
	mu sync.Mutex

	pendingInserts []T
	pendingUpdates []T
	pendingDeletes []T

	allInserts []T
	allUpdates []T
	allDeletes []T
}

// NewStagingBuffer creates an empty buffer.
func NewStagingBuffer[T Record]() *StagingBuffer[T] {
	return &StagingBuffer[T]{}
}

// AddInsert stages a record for insertion.
func (b *StagingBuffer[T]) AddInsert(record T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingInserts = append(b.pendingInserts, record)
}

// AddUpdate stages a record for update.
func (b *StagingBuffer[T]) AddUpdate(record T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingUpdates = append(b.pendingUpdates, record)
}

// AddDelete stages a record for deletion.
func (b *StagingBuffer[T]) AddDelete(record T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingDeletes = append(b.pendingDeletes, record)
}

// PendingCounts returns the lengths of the pending sequences.
func (b *StagingBuffer[T]) PendingCounts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{
		Inserts: len(b.pendingInserts),
		Updates: len(b.pendingUpdates),
		Deletes: len(b.pendingDeletes),
	}
}

// HistoryCounts returns the lengths of the history sequences.
func (b *StagingBuffer[T]) HistoryCounts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{
		Inserts: len(b.allInserts),
		Updates: len(b.allUpdates),
		Deletes: len(b.allDeletes),
	}
}

// ClearPending empties the pending sequences. History is untouched.
func (b *StagingBuffer[T]) ClearPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingInserts = nil
	b.pendingUpdates = nil
	b.pendingDeletes = nil
}

// Changes is a copy of one set of insert, update and delete sequences.
type Changes[T Record] struct {
	Inserts []T
	Updates []T
	Deletes []T
}

// Pending returns a copy of the pending sequences.
func (b *StagingBuffer[T]) Pending() Changes[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Changes[T]{
		Inserts: clone(b.pendingInserts),
		Updates: clone(b.pendingUpdates),
		Deletes: clone(b.pendingDeletes),
	}
}

// History returns a copy of the history sequences.
func (b *StagingBuffer[T]) History() Changes[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Changes[T]{
		Inserts: clone(b.allInserts),
		Updates: clone(b.allUpdates),
		Deletes: clone(b.allDeletes),
	}
}

// recordMerged appends committed inserts and updates to history.
func (b *StagingBuffer[T]) recordMerged(inserts, updates []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allInserts = append(b.allInserts, inserts...)
	b.allUpdates = append(b.allUpdates, updates...)
}

// recordDeletes appends delete candidates to history.
func (b *StagingBuffer[T]) recordDeletes(deletes []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allDeletes = append(b.allDeletes, deletes...)
}

func clone[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
