package monitor

import (
	"context"
	"fmt"

	"github.com/celerymon/celerymon/broker"
	"github.com/celerymon/celerymon/model"
)

// Actions executes user-initiated mutations against the broker and
// translates outcomes into operator-facing status messages. After each
// successful mutation an immediate refresh cycle is requested, so the
// snapshot catches up without waiting for the next tick; revocation is
// additionally surfaced optimistically.
type Actions struct {
	broker    broker.Broker
	store     *Store
	refresher *Refresher
}

// NewActions wires actions to the shared broker and store. The refresher
// may be nil, in which case snapshots catch up on the next scheduled cycle.
func NewActions(b broker.Broker, store *Store, r *Refresher) *Actions {
	return &Actions{broker: b, store: store, refresher: r}
}

// Retry re-submits the task's payload as a new task and reports the new
// id. The original task record is unaffected.
func (a *Actions) Retry(ctx context.Context, taskID string) (string, error) {
	newID, err := a.broker.RetryTask(ctx, taskID)
	if err != nil {
		return "", fmt.Errorf("retry %s: %w", taskID, err)
	}
	a.refreshNow(ctx)
	return fmt.Sprintf("task %s retried as %s", taskID, newID), nil
}

// Revoke marks the task revoked on the broker, then optimistically
// publishes a snapshot with the task's status flipped so the change is
// visible before the refresh confirms it.
func (a *Actions) Revoke(ctx context.Context, taskID string) (string, error) {
	if err := a.broker.RevokeTask(ctx, taskID); err != nil {
		return "", fmt.Errorf("revoke %s: %w", taskID, err)
	}
	a.markRevoked(taskID)
	a.refreshNow(ctx)
	return fmt.Sprintf("task %s revoked", taskID), nil
}

// refreshNow requests an immediate cycle. Failures are already recorded on
// the snapshot by the refresher, so they are not propagated to the action.
func (a *Actions) refreshNow(ctx context.Context) {
	if a.refresher == nil {
		return
	}
	_ = a.refresher.RefreshOnce(ctx)
}

// markRevoked publishes a copy of the current snapshot with the named
// task's status set to revoked, when the task is present and non-terminal.
// The update retries if a refresh publishes concurrently, so it can never
// put an older snapshot back.
func (a *Actions) markRevoked(taskID string) {
	a.store.update(func(prev *model.Snapshot) *model.Snapshot {
		for i := range prev.Tasks {
			if prev.Tasks[i].ID != taskID {
				continue
			}
			if prev.Tasks[i].Status.IsTerminal() {
				return nil
			}
			next := *prev
			next.Tasks = make([]model.Task, len(prev.Tasks))
			copy(next.Tasks, prev.Tasks)
			next.Tasks[i].Status = model.StatusRevoked
			return &next
		}
		return nil
	})
}

// Purge empties the named queue and reports how many messages were
// discarded.
func (a *Actions) Purge(ctx context.Context, queue string) (string, error) {
	purged, err := a.broker.PurgeQueue(ctx, queue)
	if err != nil {
		return "", fmt.Errorf("purge %s: %w", queue, err)
	}
	a.refreshNow(ctx)
	return fmt.Sprintf("queue %s purged (%d messages discarded)", queue, purged), nil
}
