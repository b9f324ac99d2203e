package tracker

import (
	"errors"
	"fmt"
)

// item is a minimal record used across tracker tests.
type item struct {
	ID   string
	Name string
}

func (i item) Identity() string { return "item:" + i.ID }

func newItem(id string) item { return item{ID: id, Name: "name-" + id} }

var errStore = errors.New("store unavailable")

// fakeSession records every call and fails on demand.
type fakeSession struct {
	mergeErr    map[string]error // keyed by item ID
	deleteErr   map[string]error // keyed by item ID
	commitErr   error
	rollbackErr error
	panicOn     string // "merge", "delete" or "commit"

	calls   []string
	merged  []item
	deleted []item
	closes  int
}

func newFakeSession() *fakeSession {
	return &fakeSession{mergeErr: map[string]error{}, deleteErr: map[string]error{}}
}

func (s *fakeSession) MergeOrInsert(rec item) error {
	s.calls = append(s.calls, "merge:"+rec.ID)
	if s.panicOn == "merge" {
		panic("merge exploded")
	}
	if err := s.mergeErr[rec.ID]; err != nil {
		return err
	}
	s.merged = append(s.merged, rec)
	return nil
}

func (s *fakeSession) Delete(rec item) error {
	s.calls = append(s.calls, "delete:"+rec.ID)
	if s.panicOn == "delete" {
		panic("delete exploded")
	}
	if err := s.deleteErr[rec.ID]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, rec)
	return nil
}

func (s *fakeSession) Commit() error {
	s.calls = append(s.calls, "commit")
	if s.panicOn == "commit" {
		panic("commit exploded")
	}
	return s.commitErr
}

func (s *fakeSession) Rollback() error {
	s.calls = append(s.calls, "rollback")
	return s.rollbackErr
}

func (s *fakeSession) Close() {
	s.calls = append(s.calls, "close")
	s.closes++
}

// stage fills a buffer with n inserts, updates and deletes named by prefix.
func stage(b *StagingBuffer[item], inserts, updates, deletes int) {
	for i := 0; i < inserts; i++ {
		b.AddInsert(newItem(fmt.Sprintf("i%d", i)))
	}
	for i := 0; i < updates; i++ {
		b.AddUpdate(newItem(fmt.Sprintf("u%d", i)))
	}
	for i := 0; i < deletes; i++ {
		b.AddDelete(newItem(fmt.Sprintf("d%d", i)))
	}
}

func newTestApplier(opts ...Option) *BulkApplier[item] {
	opts = append([]Option{WithCycleIDs(NewFixedGenerator("c1", "c2", "c3", "c4"))}, opts...)
	return NewBulkApplier[item](opts...)
}
