package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/celerymon/celerymon/model"
)

// Default values applied by Options.WithDefaults.
const (
	// DefaultConnectTimeout bounds connection establishment.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultOperationTimeout bounds every individual broker operation so
	// an unreachable broker cannot stall the refresh loop indefinitely.
	DefaultOperationTimeout = 10 * time.Second

	// DefaultHeartbeatWindow is the span within which a worker must show
	// evidence of activity to be classified online.
	DefaultHeartbeatWindow = 5 * time.Minute

	// DefaultScanLimit bounds how many keys or list elements a single
	// fetch inspects, keeping cycles cheap on large deployments.
	DefaultScanLimit = 500
)

// Broker is the capability every backend must provide: three independent
// read operations, three mutations, and a Close. Implementations must be
// safe for concurrent use; the refresh loop and user actions share one
// broker value.
type Broker interface {
	// Workers reconstructs the worker list from task evidence.
	Workers(ctx context.Context) ([]model.Worker, error)

	// Tasks returns all tasks discoverable in queues, the reserved index,
	// and the result store. Malformed entries are skipped, not fatal.
	Tasks(ctx context.Context) ([]model.Task, error)

	// Queues returns the queues discovered from routing bindings and
	// envelope routing keys, with live lengths.
	Queues(ctx context.Context) ([]model.Queue, error)

	// RetryTask re-submits the task's original payload as a new pending
	// task on its original queue and returns the new task id. The
	// original task's terminal record is left untouched.
	RetryTask(ctx context.Context, taskID string) (string, error)

	// RevokeTask records the task id in the shared revocation set.
	// Revoking an already-revoked id is a no-op success. Enforcement is
	// cooperative: a worker that already dequeued the task may still run
	// it unless it checks the set.
	RevokeTask(ctx context.Context, taskID string) error

	// PurgeQueue atomically empties the named queue and returns how many
	// messages were discarded.
	PurgeQueue(ctx context.Context, queue string) (int64, error)

	// Close releases the underlying transport.
	Close() error
}

// Options configures a broker connection. The zero value plus a URL is
// usable; WithDefaults fills in everything else.
type Options struct {
	// URL selects the backend by scheme and carries host, port, and the
	// backend's unit of isolation (the database index for Redis, e.g.
	// "redis://localhost:6379/0").
	URL string

	// ConnectTimeout bounds connection establishment and the initial ping.
	ConnectTimeout time.Duration

	// OperationTimeout bounds each fetch or mutation round-trip.
	OperationTimeout time.Duration

	// HeartbeatWindow is the evidence recency span for classifying a
	// worker online. Evidence exactly one window old still counts as
	// online (the boundary is inclusive).
	HeartbeatWindow time.Duration

	// ScanLimit bounds key scans and list reads per fetch.
	ScanLimit int64

	// Logger receives structured operation logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// WithDefaults returns a copy of o with zero fields replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.OperationTimeout == 0 {
		o.OperationTimeout = DefaultOperationTimeout
	}
	if o.HeartbeatWindow == 0 {
		o.HeartbeatWindow = DefaultHeartbeatWindow
	}
	if o.ScanLimit <= 0 {
		o.ScanLimit = DefaultScanLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
