// Package celerymon monitors distributed task queues by talking directly
// to the message broker, with no agent or API service in between.
//
// The broker knows nothing about "workers" or "task history": it stores
// lists, keys, hashes, and sets. This module decodes the wire conventions
// task frameworks layer on top of those structures (Celery/kombu on Redis)
// and reconstructs the operational picture an operator needs.
//
// # Core Concepts
//
// The module is organized around a few key pieces:
//
//   - Broker: the backend capability - fetch workers, tasks, and queues;
//     retry, revoke, and purge
//   - Snapshot: one immutable, consistent view of the system, rebuilt on
//     every refresh cycle
//   - Refresher: the background loop that fetches broker state on an
//     interval and publishes snapshots
//   - Actions: user-initiated mutations executed against the broker
//
// # Getting Started
//
// Connect by URL, then run the refresher:
//
//	import (
//		"github.com/celerymon/celerymon"
//		"github.com/celerymon/celerymon/broker"
//		"github.com/celerymon/celerymon/monitor"
//	)
//
//	b, err := celerymon.Connect(ctx, broker.Options{
//		URL: "redis://localhost:6379/0",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	store := monitor.NewStore()
//	refresher := monitor.NewRefresher(b, store, monitor.Options{})
//	go refresher.Run(ctx)
//
//	snap := store.Load() // always safe, never blocks
//
// # Error Handling
//
// Broker errors are structured *broker.Error values carrying an operation
// and a kind, and support errors.Is and errors.As:
//
//	if broker.IsKind(err, broker.KindTimeout) {
//		// broker unreachable; the previous snapshot is still valid
//	}
//
// Malformed broker entries are never fatal: they are skipped, counted, and
// surfaced on the snapshot as a decode-error total.
//
// # Thread Safety
//
// A connected broker and a Store are safe for concurrent use. Snapshots
// are immutable once published; readers never observe a partially updated
// view.
package celerymon
