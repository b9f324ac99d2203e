// Package tracker stages record changes and applies them to a store as one unit.
//
// A StagingBuffer holds, for a single record type, three ordered sequences of
// pending changes (inserts, updates, deletes) plus three append-only history
// sequences. A BulkApplier drains the buffer through a Session:
//
//  1. Pending inserts, then pending updates, are merged (upserted) in staging order.
//  2. Pending deletes are attempted one at a time. A failed delete is recorded
//     in the result and does not stop the loop or the transaction.
//  3. The session is committed. A merge or commit failure rolls the whole batch back.
//  4. Pending sequences are cleared and the session is closed on every exit path.
//
// # History
//
//   - Inserts and updates reach history only when the cycle commits.
//   - Deletes reach history in every cycle, attempted or not. History records
//     intent; ApplyResult.DeletesConfirmed carries the confirmed count.
//
// # Concurrency
//
// Staging calls may come from several goroutines; they are serialised and keep
// call order. At most one Apply may run per buffer at a time.
package tracker
