package tracker

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/changeset/internal/testutil"
)

func TestApply_ScenarioA_CommitsMergesAndRecordsHistory(t *testing.T) {
	b := NewStagingBuffer[item]()
	stage(b, 2, 1, 0)
	s := newFakeSession()

	res := newTestApplier().Apply(s, b)

	assert.Equal(t, StatusCommitted, res.Status)
	assert.True(t, res.Committed())
	assert.Equal(t, 3, res.Merged)
	assert.Equal(t, 0, res.DeletesAttempted)
	assert.Equal(t, 0, res.DeletesFailed)
	assert.NoError(t, res.Err)
	assert.Equal(t, Counts{}, b.PendingCounts())
	assert.Equal(t, Counts{Inserts: 2, Updates: 1}, b.HistoryCounts())
	assert.Equal(t, []string{"merge:i0", "merge:i1", "merge:u0", "commit", "close"}, s.calls)
}

func TestApply_ScenarioB_MergeFailureRollsBack(t *testing.T) {
	b := NewStagingBuffer[item]()
	b.AddInsert(newItem("bad"))
	s := newFakeSession()
	s.mergeErr["bad"] = errStore

	res := newTestApplier().Apply(s, b)

	assert.Equal(t, StatusRolledBack, res.Status)
	require.Error(t, res.Err)
	assert.True(t, IsMergeFailure(res.Err))
	assert.ErrorIs(t, res.Err, errStore)
	assert.Equal(t, 0, res.Merged)
	assert.Equal(t, Counts{}, b.PendingCounts())
	assert.Equal(t, Counts{}, b.HistoryCounts())
	assert.Equal(t, []string{"merge:bad", "rollback", "close"}, s.calls)

	var ae *ApplyError
	require.ErrorAs(t, res.Err, &ae)
	assert.Equal(t, "item:bad", ae.Identity)
	assert.Equal(t, 0, ae.Index)
	assert.Equal(t, "merge", ae.Op)
}

func TestApply_ScenarioC_DeleteFailureIsLocal(t *testing.T) {
	b := NewStagingBuffer[item]()
	stage(b, 0, 0, 3)
	s := newFakeSession()
	s.deleteErr["d1"] = errStore

	res := newTestApplier().Apply(s, b)

	assert.Equal(t, StatusCommitted, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.DeletesAttempted)
	assert.Equal(t, 1, res.DeletesFailed)
	assert.Equal(t, 2, res.DeletesConfirmed)
	assert.Equal(t, Counts{Deletes: 3}, b.HistoryCounts())
	assert.Equal(t, []string{"delete:d0", "delete:d1", "delete:d2", "commit", "close"}, s.calls)

	require.Len(t, res.Deletes, 3)
	assert.True(t, res.Deletes[0].Deleted())
	assert.False(t, res.Deletes[1].Deleted())
	assert.True(t, res.Deletes[2].Deleted())
	assert.True(t, IsDeleteFailure(res.Deletes[1].Err))
	assert.ErrorIs(t, res.Deletes[1].Err, errStore)

	failed := res.FailedDeletes()
	require.Len(t, failed, 1)
	assert.Equal(t, "item:d1", failed[0].Identity)
	assert.Equal(t, 1, failed[0].Index)
}

func TestApply_EmptyBufferCommitsOnly(t *testing.T) {
	b := NewStagingBuffer[item]()
	s := newFakeSession()

	res := newTestApplier().Apply(s, b)

	assert.Equal(t, StatusCommitted, res.Status)
	assert.Equal(t, Counts{}, res.Staged)
	assert.Zero(t, res.Merged)
	assert.Zero(t, res.DeletesAttempted)
	assert.Nil(t, res.Deletes)
	assert.Equal(t, []string{"commit", "close"}, s.calls)
}

func TestApply_MergeFailureSkipsDeletesButRecordsThem(t *testing.T) {
	b := NewStagingBuffer[item]()
	stage(b, 2, 1, 2)
	s := newFakeSession()
	s.mergeErr["i1"] = errStore

	res := newTestApplier().Apply(s, b)

	assert.Equal(t, StatusRolledBack, res.Status)
	assert.Equal(t, 1, res.Merged)
	assert.Zero(t, res.DeletesAttempted)
	assert.Equal(t, []string{"merge:i0", "merge:i1", "rollback", "close"}, s.calls)
	assert.Equal(t, Counts{Deletes: 2}, b.HistoryCounts())
	assert.Equal(t, Counts{}, b.PendingCounts())
}

func TestApply_UpdateFailureReportsSnapshotIndex(t *testing.T) {
	b := NewStagingBuffer[item]()
	stage(b, 2, 2, 0)
	s := newFakeSession()
	s.mergeErr["u1"] = errStore

	res := newTestApplier().Apply(s, b)

	var ae *ApplyError
	require.ErrorAs(t, res.Err, &ae)
	assert.Equal(t, 3, ae.Index)
	assert.Equal(t, "item:u1", ae.Identity)
}

func TestApply_CommitFailureRollsBack(t *testing.T) {
	b := NewStagingBuffer[item]()
	stage(b, 1, 1, 1)
	s := newFakeSession()
	s.commitErr = errStore

	res := newTestApplier().Apply(s, b)

	assert.Equal(t, StatusRolledBack, res.Status)
	assert.True(t, IsCommitFailure(res.Err))
	assert.False(t, IsMergeFailure(res.Err))
	assert.Equal(t, 2, res.Merged)
	assert.Equal(t, 1, res.DeletesAttempted)
	assert.Equal(t, Counts{Deletes: 1}, b.HistoryCounts())
	assert.Equal(t, []string{"merge:i0", "merge:u0", "delete:d0", "commit", "rollback", "close"}, s.calls)
}

func TestApply_RollbackFailureIsJoined(t *testing.T) {
	b := NewStagingBuffer[item]()
	b.AddInsert(newItem("bad"))
	s := newFakeSession()
	s.mergeErr["bad"] = errStore
	rbErr := errors.New("connection lost")
	s.rollbackErr = rbErr

	res := newTestApplier().Apply(s, b)

	assert.Equal(t, StatusRolledBack, res.Status)
	assert.True(t, IsMergeFailure(res.Err))
	assert.ErrorIs(t, res.Err, rbErr)
	assert.Contains(t, res.Err.Error(), string(ErrCodeRollbackFailure))
	assert.Equal(t, 1, s.closes)
}

func TestApply_SessionPanicIsRecovered(t *testing.T) {
	tests := []struct {
		name      string
		panicOn   string
		wantCalls []string
	}{
		{
			name:      "merge",
			panicOn:   "merge",
			wantCalls: []string{"merge:i0", "rollback", "close"},
		},
		{
			name:      "delete",
			panicOn:   "delete",
			wantCalls: []string{"merge:i0", "delete:d0", "rollback", "close"},
		},
		{
			name:      "commit",
			panicOn:   "commit",
			wantCalls: []string{"merge:i0", "delete:d0", "commit", "rollback", "close"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewStagingBuffer[item]()
			stage(b, 1, 0, 1)
			s := newFakeSession()
			s.panicOn = tt.panicOn

			res := newTestApplier().Apply(s, b)

			assert.Equal(t, StatusRolledBack, res.Status)
			assert.Contains(t, res.Err.Error(), string(ErrCodeSessionPanic))
			assert.Equal(t, tt.wantCalls, s.calls)
			assert.Equal(t, Counts{}, b.PendingCounts())
			assert.Equal(t, Counts{Deletes: 1}, b.HistoryCounts())
		})
	}
}

func TestApply_HistoryAccumulatesAcrossCycles(t *testing.T) {
	b := NewStagingBuffer[item]()
	a := newTestApplier()

	stage(b, 2, 1, 1)
	first := a.Apply(newFakeSession(), b)
	require.True(t, first.Committed())

	b.AddInsert(newItem("bad"))
	b.AddDelete(newItem("gone"))
	failing := newFakeSession()
	failing.mergeErr["bad"] = errStore
	second := a.Apply(failing, b)
	require.False(t, second.Committed())

	stage(b, 1, 0, 0)
	third := a.Apply(newFakeSession(), b)
	require.True(t, third.Committed())

	assert.Equal(t, Counts{Inserts: 3, Updates: 1, Deletes: 2}, b.HistoryCounts())
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{first.CycleID, second.CycleID, third.CycleID})

	h := b.History()
	assert.Equal(t, []item{newItem("d0"), newItem("gone")}, h.Deletes)
}

func TestApply_SameRecordInsertThenUpdate(t *testing.T) {
	b := NewStagingBuffer[item]()
	first := item{ID: "1", Name: "old"}
	second := item{ID: "1", Name: "new"}
	b.AddUpdate(second)
	b.AddInsert(first)
	s := newFakeSession()

	res := newTestApplier().Apply(s, b)

	require.True(t, res.Committed())
	// Inserts always go first, so the update wins.
	assert.Equal(t, []item{first, second}, s.merged)
}

func TestApply_LogsThroughInjectedLogger(t *testing.T) {
	rec := testutil.NewRecorder()
	b := NewStagingBuffer[item]()
	stage(b, 1, 0, 2)
	s := newFakeSession()
	s.deleteErr["d0"] = errStore

	newTestApplier(WithLogger(rec.Logger())).Apply(s, b)

	assert.Equal(t, []string{"apply started", "apply committed"}, rec.Messages(slog.LevelInfo))
	assert.Equal(t, []string{"delete failed"}, rec.Messages(slog.LevelError))

	entries := rec.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "c1", entries[0].Attrs["cycle"])
	assert.Equal(t, int64(2), entries[0].Attrs["deletes"])
}

func TestApply_LogsRollback(t *testing.T) {
	rec := testutil.NewRecorder()
	b := NewStagingBuffer[item]()
	b.AddInsert(newItem("bad"))
	s := newFakeSession()
	s.mergeErr["bad"] = errStore

	newTestApplier(WithLogger(rec.Logger())).Apply(s, b)

	assert.Equal(t, []string{"apply rolled back"}, rec.Messages(slog.LevelError))
}

func TestApply_ElapsedUsesClock(t *testing.T) {
	clock := testutil.NewStepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 250*time.Millisecond)
	b := NewStagingBuffer[item]()
	stage(b, 1, 0, 0)

	res := newTestApplier(WithClock(clock.Now)).Apply(newFakeSession(), b)

	assert.Equal(t, 250*time.Millisecond, res.Elapsed)
}

func TestNewBulkApplier_Defaults(t *testing.T) {
	a := NewBulkApplier[item](WithLogger(nil), WithCycleIDs(nil), WithClock(nil))
	b := NewStagingBuffer[item]()

	res := a.Apply(newFakeSession(), b)

	assert.Len(t, res.CycleID, 36)
	assert.True(t, res.Committed())
}
