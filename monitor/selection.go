package monitor

import (
	"strings"

	"github.com/celerymon/celerymon/model"
)

// Selection tracks which worker, task, and queue a display layer has
// focused, by index into the snapshot's sorted collections, plus an
// optional task filter. Selections are owned by a single consumer and are
// not safe for concurrent use; clamp them against each new snapshot.
type Selection struct {
	Worker int
	Task   int
	Queue  int

	// Filter is a case-insensitive substring matched against task names
	// and ids. Empty means no filtering.
	Filter string
}

// Clamp adjusts the indices to stay within the snapshot's collections
// after a refresh shrinks or empties them. An empty collection clamps its
// index to zero.
func (sel *Selection) Clamp(snap *model.Snapshot) {
	sel.Worker = clampIndex(sel.Worker, len(snap.Workers))
	sel.Task = clampIndex(sel.Task, len(FilterTasks(snap.Tasks, sel.Filter)))
	sel.Queue = clampIndex(sel.Queue, len(snap.Queues))
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// FilterTasks returns the tasks whose name or id contains the filter,
// case-insensitively. An empty filter returns the input unchanged; order
// is preserved.
func FilterTasks(tasks []model.Task, filter string) []model.Task {
	if filter == "" {
		return tasks
	}
	needle := strings.ToLower(filter)
	var out []model.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Name), needle) ||
			strings.Contains(strings.ToLower(t.ID), needle) {
			out = append(out, t)
		}
	}
	return out
}
