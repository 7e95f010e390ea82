// Package monitor maintains the live view of broker state: a background
// refresher that fetches workers, tasks, and queues on an interval, a
// lock-free snapshot store, selection bookkeeping for display layers, and
// user-initiated actions.
//
// The concurrency contract is deliberately narrow. Exactly one Refresher
// writes snapshots; any number of readers call Store.Load, which never
// blocks. Refresh cycles are sequential: a new cycle never starts while
// one is in flight, so a slow broker yields stale data rather than a
// backlog of concurrent fetches. Within a cycle the three fetches run
// concurrently against the broker, which must be safe for concurrent use.
//
// A partially failed cycle keeps the previous cycle's data for whatever
// failed and records the failure on the snapshot; stale-but-valid always
// beats blank.
package monitor
