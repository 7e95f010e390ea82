package model

import (
	"sort"
	"time"
)

// Snapshot is the immutable aggregate of one completed fetch cycle. It is
// published by a single writer and shared by reference with any number of
// readers; nothing may be mutated after publication.
type Snapshot struct {
	Workers []Worker `json:"workers"`
	Tasks   []Task   `json:"tasks"`
	Queues  []Queue  `json:"queues"`

	// LastRefresh is when the cycle that produced this data completed.
	// It goes stale, rather than advancing, when a whole cycle fails.
	LastRefresh time.Time `json:"last_refresh"`

	// LastError describes the most recent fetch failure, empty when the
	// last cycle fully succeeded. Stale-but-valid data plus LastError is
	// always preferred over blank data.
	LastError string `json:"last_error,omitempty"`

	// DecodeErrors is the cumulative count of broker entries that could
	// not be decoded and were skipped.
	DecodeErrors uint64 `json:"decode_errors"`
}

// TaskByID returns the task with the given id, or nil if absent.
func (s *Snapshot) TaskByID(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// WorkerByHostname returns the worker with the given hostname, or nil.
func (s *Snapshot) WorkerByHostname(hostname string) *Worker {
	for i := range s.Workers {
		if s.Workers[i].Hostname == hostname {
			return &s.Workers[i]
		}
	}
	return nil
}

// SortWorkers orders workers by hostname for stable display.
func SortWorkers(workers []Worker) {
	sort.Slice(workers, func(i, j int) bool {
		return workers[i].Hostname < workers[j].Hostname
	})
}

// SortQueues orders queues by name for stable display.
func SortQueues(queues []Queue) {
	sort.Slice(queues, func(i, j int) bool {
		return queues[i].Name < queues[j].Name
	})
}

// SortTasks orders tasks newest first, breaking ties by id so that two
// cycles over the same data produce the same order.
func SortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Timestamp.Equal(tasks[j].Timestamp) {
			return tasks[i].Timestamp.After(tasks[j].Timestamp)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
