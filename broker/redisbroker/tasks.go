package redisbroker

import (
	"context"

	"github.com/celerymon/celerymon/model"
)

// Tasks merges three evidence sources into one task list: reserved
// envelopes (Active), queued envelopes (Pending), and result-store records
// (terminal statuses). Records are merged by task id; the result store wins
// status conflicts because a terminal record outlives a stale queue
// listing.
func (b *Broker) Tasks(ctx context.Context) ([]model.Task, error) {
	const op = "redis.Tasks"
	ctx, cancel := b.opCtx(ctx)
	defer cancel()

	queues, err := b.queueNames(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	reserved, err := b.unackedEnvelopes(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	pending, err := b.queuedEnvelopes(ctx, queues)
	if err != nil {
		return nil, wrapErr(op, err)
	}

	now := b.now().UTC()
	byID := make(map[string]*model.Task)

	for i := range reserved {
		env := &reserved[i]
		if _, ok := byID[env.ID]; ok {
			continue
		}
		byID[env.ID] = &model.Task{
			ID:        env.ID,
			Name:      env.Name,
			Args:      env.Args,
			Kwargs:    env.Kwargs,
			Status:    model.StatusActive,
			Worker:    hostnameFromOrigin(env.Origin),
			Queue:     env.Queue,
			Timestamp: now,
		}
	}

	for i := range pending {
		env := &pending[i]
		if _, ok := byID[env.ID]; ok {
			continue
		}
		byID[env.ID] = &model.Task{
			ID:        env.ID,
			Name:      env.Name,
			Args:      env.Args,
			Kwargs:    env.Kwargs,
			Status:    model.StatusPending,
			Queue:     env.Queue,
			Timestamp: now,
		}
	}

	err = b.scanTaskMeta(ctx, func(taskID string, meta *taskMeta) {
		t, ok := byID[taskID]
		if !ok {
			t = &model.Task{ID: taskID, Args: "[]", Kwargs: "{}"}
			byID[taskID] = t
		}
		t.Status = model.ParseTaskStatus(meta.Status)
		t.Timestamp = meta.timestamp(now)
		t.Traceback = meta.Traceback
		if len(meta.Result) > 0 {
			t.Result = string(meta.Result)
		}
		// Extended result fields, when stored, are more authoritative
		// than whatever the envelope carried.
		if meta.Name != "" {
			t.Name = meta.Name
		}
		if meta.Worker != "" {
			t.Worker = hostnameFromOrigin(meta.Worker)
		}
		if meta.Queue != "" {
			t.Queue = meta.Queue
		}
		if len(meta.Args) > 0 {
			t.Args = string(meta.Args)
		}
		if len(meta.Kwargs) > 0 {
			t.Kwargs = string(meta.Kwargs)
		}
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}

	// A revocation recorded before the worker noticed it shows up only in
	// the shared set; surface it on any non-terminal task.
	revoked, err := b.rdb.SMembers(ctx, revokedKey).Result()
	if err != nil {
		return nil, wrapErr(op, err)
	}
	for _, id := range revoked {
		if t, ok := byID[id]; ok && !t.Status.IsTerminal() {
			t.Status = model.StatusRevoked
		}
	}

	tasks := make([]model.Task, 0, len(byID))
	for _, t := range byID {
		tasks = append(tasks, *t)
	}
	model.SortTasks(tasks)

	b.logger.Debug("fetched tasks", "count", len(tasks), "decode_errors", b.decodeErrs.Load())
	return tasks, nil
}
