package redisbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/celerymon/celerymon/broker"
	"github.com/celerymon/celerymon/model"
)

// RetryTask re-submits the task's original payload as a brand new pending
// task with a fresh id, pushed onto the task's original queue. The original
// record is left untouched; history stays intact and the retry is
// observable as its own task.
func (b *Broker) RetryTask(ctx context.Context, taskID string) (string, error) {
	const op = "redis.RetryTask"
	if err := validateTaskID(taskID); err != nil {
		return "", broker.NewValidationError(op, err)
	}
	ctx, cancel := b.opCtx(ctx)
	defer cancel()

	env, err := b.originalEnvelope(ctx, taskID)
	if err != nil {
		return "", err
	}

	env.ID = uuid.NewString()
	raw, err := encodeEnvelope(env)
	if err != nil {
		return "", broker.NewInternalError(op, err)
	}

	queue := env.Queue
	if queue == "" {
		queue = defaultQueue
	}
	if err := b.rdb.LPush(ctx, queue, raw).Err(); err != nil {
		return "", wrapErr(op, err)
	}

	b.logger.Info("retried task", "task_id", taskID, "new_task_id", env.ID, "queue", queue)
	return env.ID, nil
}

// originalEnvelope recovers the payload needed to re-submit a task: the
// extended result record when the deployment stores one, otherwise the
// still-queued envelope.
func (b *Broker) originalEnvelope(ctx context.Context, taskID string) (*envelope, error) {
	const op = "redis.RetryTask"

	raw, err := b.rdb.Get(ctx, taskMetaPrefix+taskID).Result()
	switch {
	case err == redis.Nil:
		// No result record; fall through to the queue scan.
	case err != nil:
		return nil, wrapErr(op, err)
	default:
		meta, derr := decodeTaskMeta(raw)
		if derr != nil {
			return nil, broker.NewDecodeError(op, derr)
		}
		if meta.Name != "" {
			env := &envelope{
				ID:      taskID,
				Name:    meta.Name,
				Queue:   meta.Queue,
				Retries: meta.Retries,
				Args:    "[]",
				Kwargs:  "{}",
			}
			if len(meta.Args) > 0 {
				env.Args = string(meta.Args)
			}
			if len(meta.Kwargs) > 0 {
				env.Kwargs = string(meta.Kwargs)
			}
			return env, nil
		}
		// Plain record: status only, no payload. The envelope may still be
		// recoverable from a queue.
	}

	queues, err := b.queueNames(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	envs, err := b.queuedEnvelopes(ctx, queues)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	for i := range envs {
		if envs[i].ID == taskID {
			return &envs[i], nil
		}
	}

	return nil, broker.NewNotFoundError(op, fmt.Errorf("task %s: %w", taskID, broker.ErrTaskNotFound))
}

// RevokeTask records the task id in the shared revocation set, which
// workers consult before executing a reserved task. Revoking an id that is
// already present is a no-op success. When a result record exists and is
// non-terminal, its status is flipped as well so the revocation is visible
// without waiting for a worker to notice.
func (b *Broker) RevokeTask(ctx context.Context, taskID string) error {
	const op = "redis.RevokeTask"
	if err := validateTaskID(taskID); err != nil {
		return broker.NewValidationError(op, err)
	}
	ctx, cancel := b.opCtx(ctx)
	defer cancel()

	if err := b.rdb.SAdd(ctx, revokedKey, taskID).Err(); err != nil {
		return wrapErr(op, err)
	}

	// Best effort; the authoritative record is the set membership above.
	key := taskMetaPrefix + taskID
	raw, err := b.rdb.Get(ctx, key).Result()
	if err == nil {
		if meta, derr := decodeTaskMeta(raw); derr == nil && !model.ParseTaskStatus(meta.Status).IsTerminal() {
			meta.Status = string(model.StatusRevoked)
			if updated, merr := json.Marshal(meta); merr == nil {
				_ = b.rdb.Set(ctx, key, updated, redis.KeepTTL).Err()
			}
		}
	}

	b.logger.Info("revoked task", "task_id", taskID)
	return nil
}

// PurgeQueue atomically measures and deletes the queue list, returning the
// number of discarded messages. Messages pushed after the transaction is
// queued survive; messages present at execution time do not.
func (b *Broker) PurgeQueue(ctx context.Context, queue string) (int64, error) {
	const op = "redis.PurgeQueue"
	if err := validateQueueName(queue); err != nil {
		return 0, broker.NewValidationError(op, err)
	}
	ctx, cancel := b.opCtx(ctx)
	defer cancel()

	var length *redis.IntCmd
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		length = pipe.LLen(ctx, queue)
		pipe.Del(ctx, queue)
		return nil
	})
	if err != nil {
		return 0, wrapErr(op, err)
	}
	purged := length.Val()

	if purged == 0 && queue != defaultQueue {
		bound, err := b.bindingQueues(ctx)
		if err != nil {
			return 0, wrapErr(op, err)
		}
		if _, ok := bound[queue]; !ok {
			return 0, broker.NewNotFoundError(op, fmt.Errorf("queue %s: %w", queue, broker.ErrQueueNotFound))
		}
	}

	b.logger.Info("purged queue", "queue", queue, "purged", purged)
	return purged, nil
}

// validateTaskID rejects ids that could not have been produced by a task
// publisher: empty strings, overlong strings, and non-UUID shapes.
func validateTaskID(id string) error {
	if id == "" {
		return fmt.Errorf("task id is empty")
	}
	if len(id) > 36 {
		return fmt.Errorf("task id %q exceeds 36 characters", id)
	}
	if len(id) == 36 {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("task id %q is not a valid UUID", id)
		}
		return nil
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F', r == '-':
		default:
			return fmt.Errorf("task id %q contains invalid character %q", id, r)
		}
	}
	return nil
}

// validateQueueName rejects names that cannot be legitimate queue keys,
// which also keeps arbitrary key deletion out of PurgeQueue's reach.
func validateQueueName(name string) error {
	if name == "" {
		return fmt.Errorf("queue name is empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("queue name exceeds 255 characters")
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("queue name %q has a leading or trailing dot", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("queue name %q contains invalid character %q", name, r)
		}
	}
	return nil
}
