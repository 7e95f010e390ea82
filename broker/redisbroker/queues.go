package redisbroker

import (
	"context"

	"github.com/celerymon/celerymon/model"
)

// Queues discovers queues from binding records, envelope routing keys, and
// the always-present default queue, then reads each live length. A queue
// that is empty and backed by no binding record is dropped: it is
// indistinguishable from a key that never existed.
func (b *Broker) Queues(ctx context.Context) ([]model.Queue, error) {
	const op = "redis.Queues"
	ctx, cancel := b.opCtx(ctx)
	defer cancel()

	bound, err := b.bindingQueues(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}

	names := make(map[string]struct{}, len(bound)+1)
	for name := range bound {
		names[name] = struct{}{}
	}
	names[defaultQueue] = struct{}{}

	// Reserved deliveries carry routing keys too, and may name queues that
	// have no binding record (direct pushes).
	reserved, err := b.unackedEnvelopes(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	consumersByQueue := make(map[string]map[string]struct{})
	for i := range reserved {
		env := &reserved[i]
		if env.Queue == "" {
			continue
		}
		names[env.Queue] = struct{}{}
		hostname := hostnameFromOrigin(env.Origin)
		if hostname == "" {
			continue
		}
		if consumersByQueue[env.Queue] == nil {
			consumersByQueue[env.Queue] = make(map[string]struct{})
		}
		consumersByQueue[env.Queue][hostname] = struct{}{}
	}

	queues := make([]model.Queue, 0, len(names))
	for name := range names {
		length, err := b.rdb.LLen(ctx, name).Result()
		if err != nil {
			return nil, wrapErr(op, err)
		}
		_, isBound := bound[name]
		if length == 0 && !isBound && name != defaultQueue && len(consumersByQueue[name]) == 0 {
			continue
		}
		queues = append(queues, model.Queue{
			Name:      name,
			Length:    length,
			Consumers: len(consumersByQueue[name]),
		})
	}
	model.SortQueues(queues)

	b.logger.Debug("discovered queues", "count", len(queues))
	return queues, nil
}
