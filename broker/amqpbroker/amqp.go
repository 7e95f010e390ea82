// Package amqpbroker reserves the AMQP backend slot in the URL scheme
// dispatch. AMQP exposes a real control plane (consumer registries, queue
// declarations, broadcast commands), so its implementation will not share
// the reconstruction machinery the Redis backend needs; until it lands,
// every operation reports ErrUnsupported.
package amqpbroker

import (
	"context"

	"github.com/celerymon/celerymon/broker"
	"github.com/celerymon/celerymon/model"
)

// Broker is the placeholder AMQP backend.
type Broker struct {
	opts broker.Options
}

var _ broker.Broker = (*Broker)(nil)

// Connect accepts the options without dialing anything. Returning a
// connected-but-unsupported broker keeps scheme dispatch uniform; callers
// discover the gap on first use as a KindUnsupported error.
func Connect(_ context.Context, opts broker.Options) (*Broker, error) {
	return &Broker{opts: opts.WithDefaults()}, nil
}

func (b *Broker) Workers(context.Context) ([]model.Worker, error) {
	return nil, broker.NewUnsupportedError("amqp.Workers")
}

func (b *Broker) Tasks(context.Context) ([]model.Task, error) {
	return nil, broker.NewUnsupportedError("amqp.Tasks")
}

func (b *Broker) Queues(context.Context) ([]model.Queue, error) {
	return nil, broker.NewUnsupportedError("amqp.Queues")
}

func (b *Broker) RetryTask(context.Context, string) (string, error) {
	return "", broker.NewUnsupportedError("amqp.RetryTask")
}

func (b *Broker) RevokeTask(context.Context, string) error {
	return broker.NewUnsupportedError("amqp.RevokeTask")
}

func (b *Broker) PurgeQueue(context.Context, string) (int64, error) {
	return 0, broker.NewUnsupportedError("amqp.PurgeQueue")
}

func (b *Broker) Close() error { return nil }
