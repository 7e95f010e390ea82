package model

import "time"

// TaskStatus is the lifecycle state of a task as observed on the broker.
// The values match the status strings Celery writes to its result store.
type TaskStatus string

const (
	// StatusPending means the task is queued and has not been picked up.
	StatusPending TaskStatus = "PENDING"

	// StatusActive means the task has been reserved by a worker and is
	// executing (Celery reports this as STARTED).
	StatusActive TaskStatus = "ACTIVE"

	// StatusSuccess means the task completed and stored a result.
	StatusSuccess TaskStatus = "SUCCESS"

	// StatusFailure means the task raised and stored a traceback.
	StatusFailure TaskStatus = "FAILURE"

	// StatusRetry means the task failed and was rescheduled by the worker.
	StatusRetry TaskStatus = "RETRY"

	// StatusRevoked means the task id was recorded in the revocation set.
	StatusRevoked TaskStatus = "REVOKED"
)

// ParseTaskStatus maps a status string from the broker to a TaskStatus.
// Unknown or empty values map to StatusPending, mirroring how the result
// backend reports tasks it has no record for.
func ParseTaskStatus(s string) TaskStatus {
	switch s {
	case "SUCCESS":
		return StatusSuccess
	case "FAILURE":
		return StatusFailure
	case "RETRY":
		return StatusRetry
	case "REVOKED":
		return StatusRevoked
	case "STARTED", "ACTIVE":
		return StatusActive
	default:
		return StatusPending
	}
}

// IsTerminal reports whether the status is a final state that will not
// change without external intervention.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusRevoked:
		return true
	}
	return false
}

// Task is a single task occurrence reconstructed from queue envelopes and
// the result store. Status transitions are driven by workers and are only
// observed here, except StatusRevoked which the monitor can set directly.
type Task struct {
	// ID is the broker-assigned task identifier (a UUID for Celery).
	ID string `json:"id"`

	// Name is the registered task name (e.g. "app.tasks.send_email").
	Name string `json:"name"`

	// Args is the positional argument list, serialized as a JSON array.
	Args string `json:"args"`

	// Kwargs is the keyword argument map, serialized as a JSON object.
	Kwargs string `json:"kwargs"`

	// Status is the observed lifecycle state.
	Status TaskStatus `json:"status"`

	// Worker is the hostname of the worker that owns or finished the task.
	// Empty until evidence attributing the task to a worker is seen.
	Worker string `json:"worker,omitempty"`

	// Queue is the queue the task was routed to.
	Queue string `json:"queue,omitempty"`

	// Timestamp is the most recent evidence time for this task: date_done
	// for finished tasks, observation time for queued or active ones.
	Timestamp time.Time `json:"timestamp"`

	// Result is the serialized return value, when one was stored.
	Result string `json:"result,omitempty"`

	// Traceback is the failure traceback, when one was stored.
	Traceback string `json:"traceback,omitempty"`
}
