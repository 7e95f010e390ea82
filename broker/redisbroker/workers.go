package redisbroker

import (
	"context"
	"sort"

	"github.com/celerymon/celerymon/model"
)

// Workers reconstructs the worker population from task evidence: reserved
// envelopes attribute active tasks to a hostname, and result-store records
// attribute finished ones. A hostname is classified online when its newest
// evidence falls within the heartbeat window, boundary inclusive.
func (b *Broker) Workers(ctx context.Context) ([]model.Worker, error) {
	const op = "redis.Workers"
	ctx, cancel := b.opCtx(ctx)
	defer cancel()

	now := b.now().UTC()
	byHost := make(map[string]*model.Worker)
	queuesByHost := make(map[string]map[string]struct{})

	observe := func(hostname string) *model.Worker {
		w, ok := byHost[hostname]
		if !ok {
			// Concurrency stays zero: the list backend never exposes pool
			// sizes, and a made-up number would over-claim.
			w = &model.Worker{Hostname: hostname}
			byHost[hostname] = w
			queuesByHost[hostname] = make(map[string]struct{})
		}
		return w
	}

	reserved, err := b.unackedEnvelopes(ctx)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	for i := range reserved {
		env := &reserved[i]
		hostname := hostnameFromOrigin(env.Origin)
		if hostname == "" {
			continue
		}
		w := observe(hostname)
		w.ActiveTasks = append(w.ActiveTasks, env.ID)
		// A reserved delivery is evidence of liveness right now.
		if now.After(w.LastSeen) {
			w.LastSeen = now
		}
		if env.Queue != "" {
			queuesByHost[hostname][env.Queue] = struct{}{}
		}
	}

	err = b.scanTaskMeta(ctx, func(taskID string, meta *taskMeta) {
		if meta.Worker == "" {
			return
		}
		hostname := hostnameFromOrigin(meta.Worker)
		w := observe(hostname)
		w.Processed++
		if model.ParseTaskStatus(meta.Status) == model.StatusFailure {
			w.Failed++
		}
		if ts := meta.timestamp(now); ts.After(w.LastSeen) {
			w.LastSeen = ts
		}
		if meta.Queue != "" {
			queuesByHost[hostname][meta.Queue] = struct{}{}
		}
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}

	workers := make([]model.Worker, 0, len(byHost))
	for hostname, w := range byHost {
		if now.Sub(w.LastSeen) <= b.opts.HeartbeatWindow {
			w.Status = model.StatusOnline
		} else {
			w.Status = model.StatusOffline
		}
		w.Queues = sortedSet(queuesByHost[hostname])
		if len(w.Queues) == 0 {
			// No routing evidence; assume the default queue.
			w.Queues = []string{defaultQueue}
		}
		sort.Strings(w.ActiveTasks)
		workers = append(workers, *w)
	}
	model.SortWorkers(workers)

	b.logger.Debug("reconstructed workers", "count", len(workers))
	return workers, nil
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
