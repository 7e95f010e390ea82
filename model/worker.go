package model

import "time"

// WorkerStatus is the derived liveness classification of a worker.
type WorkerStatus string

const (
	// StatusOnline means the worker showed evidence of activity within the
	// heartbeat window at fetch time.
	StatusOnline WorkerStatus = "ONLINE"

	// StatusOffline means no recent evidence was attributable to the
	// worker. A quiet-but-alive worker is indistinguishable from a dead
	// one on this backend, so offline is a best-effort classification.
	StatusOffline WorkerStatus = "OFFLINE"
)

// Worker is a worker process reconstructed from task evidence. The broker
// keeps no worker registry, so every field here is inferred: identity from
// hostnames seen in task ownership records, counters from scanning the
// result store, liveness from evidence recency.
type Worker struct {
	// Hostname identifies the worker. Two refresh cycles refer to the same
	// worker exactly when the hostname strings are equal.
	Hostname string `json:"hostname"`

	// Status is the derived Online/Offline classification.
	Status WorkerStatus `json:"status"`

	// Concurrency is the worker's believed process/thread pool size, zero
	// when the backend offers no evidence for it.
	Concurrency int `json:"concurrency"`

	// Queues are the queue names the worker is believed to consume.
	Queues []string `json:"queues"`

	// ActiveTasks are the ids of tasks currently reserved by this worker.
	ActiveTasks []string `json:"active_tasks"`

	// Processed and Failed are running tallies derived from result-store
	// entries attributed to this hostname, not authoritative counters.
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`

	// LastSeen is the newest evidence timestamp attributed to the worker.
	LastSeen time.Time `json:"last_seen"`
}

// IsOnline reports whether the worker is classified online.
func (w *Worker) IsOnline() bool {
	return w.Status == StatusOnline
}

// ConsumesQueue reports whether the worker is believed to consume the
// named queue.
func (w *Worker) ConsumesQueue(name string) bool {
	for _, q := range w.Queues {
		if q == name {
			return true
		}
	}
	return false
}
