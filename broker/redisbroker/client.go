package redisbroker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/celerymon/celerymon/broker"
)

// Broker implements the broker capability against Redis using go-redis/v9.
// The client multiplexes commands over a shared connection pool, so one
// Broker value is safe for concurrent fetches and mutations.
type Broker struct {
	rdb    *redis.Client
	opts   broker.Options
	logger *slog.Logger

	decodeErrs atomic.Uint64
	metrics    *metrics

	// now is replaceable in tests to pin liveness boundaries.
	now func() time.Time
}

var _ broker.Broker = (*Broker)(nil)

// Connect validates the URL, establishes the client, and verifies
// reachability with a single ping. It fetches no data.
func Connect(ctx context.Context, opts broker.Options) (*Broker, error) {
	const op = "redis.Connect"
	opts = opts.WithDefaults()

	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, broker.NewValidationError(op, err)
	}
	ropts.DialTimeout = opts.ConnectTimeout
	ropts.ReadTimeout = opts.OperationTimeout
	ropts.WriteTimeout = opts.OperationTimeout

	rdb := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, wrapErr(op, err)
	}

	logger := opts.Logger.With("broker", "redis")
	logger.Debug("connected", "url_host", ropts.Addr, "db", ropts.DB)

	return &Broker{
		rdb:     rdb,
		opts:    opts,
		logger:  logger,
		metrics: newMetrics(logger),
		now:     time.Now,
	}, nil
}

// Close releases the underlying connection pool.
func (b *Broker) Close() error {
	return b.rdb.Close()
}

// DecodeErrors returns the cumulative count of entries skipped because
// they could not be decoded.
func (b *Broker) DecodeErrors() uint64 {
	return b.decodeErrs.Load()
}

// opCtx bounds one broker operation with the configured timeout.
func (b *Broker) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.opts.OperationTimeout > 0 {
		return context.WithTimeout(ctx, b.opts.OperationTimeout)
	}
	return ctx, func() {}
}

// recordDecodeError counts a skipped entry without failing the fetch.
func (b *Broker) recordDecodeError(ctx context.Context, source string, err error) {
	b.decodeErrs.Add(1)
	b.metrics.recordDecodeError(ctx, source)
	b.logger.Debug("skipping undecodable entry", "source", source, "error", err)
}

// wrapErr classifies a transport failure as a timeout or connection error.
func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return broker.NewTimeoutError(op, err)
	}
	return broker.NewConnectionError(op, err)
}

// bindingQueues discovers queue names from kombu routing-binding records.
func (b *Broker) bindingQueues(ctx context.Context) (map[string]struct{}, error) {
	queues := make(map[string]struct{})

	iter := b.rdb.Scan(ctx, 0, bindingPrefix+"*", b.opts.ScanLimit).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		members, err := b.rdb.SMembers(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			if name := bindingQueueName(member); name != "" {
				queues[name] = struct{}{}
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return queues, nil
}

// queueNames is the discovery basis for list reads: binding records plus
// the default queue, which exists on every deployment.
func (b *Broker) queueNames(ctx context.Context) (map[string]struct{}, error) {
	queues, err := b.bindingQueues(ctx)
	if err != nil {
		return nil, err
	}
	queues[defaultQueue] = struct{}{}
	return queues, nil
}

// queuedEnvelopes reads and decodes up to ScanLimit envelopes per known
// queue. Undecodable elements are counted and skipped.
func (b *Broker) queuedEnvelopes(ctx context.Context, queues map[string]struct{}) ([]envelope, error) {
	var envs []envelope
	for name := range queues {
		raws, err := b.rdb.LRange(ctx, name, 0, b.opts.ScanLimit-1).Result()
		if err != nil {
			return nil, err
		}
		for _, raw := range raws {
			env, derr := decodeEnvelope(raw)
			if derr != nil {
				b.recordDecodeError(ctx, name, derr)
				continue
			}
			if env.Queue == "" {
				env.Queue = name
			}
			envs = append(envs, *env)
		}
	}
	return envs, nil
}

// unackedEnvelopes reads the reserved-delivery index. Each entry is a task
// a worker has dequeued but not yet acknowledged.
func (b *Broker) unackedEnvelopes(ctx context.Context) ([]envelope, error) {
	entries, err := b.rdb.HGetAll(ctx, unackedKey).Result()
	if err != nil {
		return nil, err
	}
	var envs []envelope
	for _, raw := range entries {
		env, derr := decodeUnackedEntry(raw)
		if derr != nil {
			b.recordDecodeError(ctx, unackedKey, derr)
			continue
		}
		envs = append(envs, *env)
	}
	return envs, nil
}

// scanTaskMeta walks result-store records, invoking fn per decoded record.
// The scan is bounded by ScanLimit keys per fetch.
func (b *Broker) scanTaskMeta(ctx context.Context, fn func(taskID string, meta *taskMeta)) error {
	iter := b.rdb.Scan(ctx, 0, taskMetaPrefix+"*", b.opts.ScanLimit).Iterator()
	var seen int64
	for iter.Next(ctx) {
		if seen++; seen > b.opts.ScanLimit {
			break
		}
		key := iter.Val()
		raw, err := b.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}
		meta, derr := decodeTaskMeta(raw)
		if derr != nil {
			b.recordDecodeError(ctx, "result-store", derr)
			continue
		}
		fn(key[len(taskMetaPrefix):], meta)
	}
	return iter.Err()
}
