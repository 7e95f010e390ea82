package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/celerymon/celerymon/broker"
	"github.com/celerymon/celerymon/model"
)

// DefaultInterval is the refresh cadence applied when Options.Interval is
// zero.
const DefaultInterval = 2 * time.Second

// Options configures a Refresher.
type Options struct {
	// Interval is the delay between the end of one refresh cycle and the
	// start of the next.
	Interval time.Duration

	// Logger receives cycle-level logs. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// decodeErrorCounter is implemented by brokers that track skipped entries.
type decodeErrorCounter interface {
	DecodeErrors() uint64
}

// Refresher runs the fetch cycle: three concurrent broker reads merged
// into one snapshot, published to the store. Cycles are strictly
// sequential, including action-triggered ones that arrive while the ticker
// cycle is in flight.
type Refresher struct {
	broker broker.Broker
	store  *Store
	opts   Options
	logger *slog.Logger

	// mu serializes cycles. Without it, an action-triggered RefreshOnce
	// could overlap the ticker cycle and an older cycle finishing later
	// would publish over the newer one.
	mu sync.Mutex

	tracer        trace.Tracer
	cycleDuration metric.Float64Histogram
	cycleCount    metric.Int64Counter
}

// NewRefresher wires a refresher to a connected broker and a store.
func NewRefresher(b broker.Broker, store *Store, opts Options) *Refresher {
	opts = opts.withDefaults()
	r := &Refresher{
		broker: b,
		store:  store,
		opts:   opts,
		logger: opts.Logger.With("component", "refresher"),
		tracer: otel.Tracer("github.com/celerymon/celerymon/monitor"),
	}

	meter := otel.Meter("github.com/celerymon/celerymon/monitor")
	if hist, err := meter.Float64Histogram(
		"monitor.refresh_duration",
		metric.WithDescription("Duration of one refresh cycle in milliseconds"),
		metric.WithUnit("ms"),
	); err == nil {
		r.cycleDuration = hist
	}
	if counter, err := meter.Int64Counter(
		"monitor.refresh_cycles",
		metric.WithDescription("Completed refresh cycles by outcome"),
		metric.WithUnit("1"),
	); err == nil {
		r.cycleCount = counter
	}
	return r
}

// Run refreshes immediately, then on every interval tick, until ctx is
// cancelled. Cycle failures are recorded on the snapshot and logged, never
// fatal to the loop.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "monitor.refresh")
	defer span.End()

	start := time.Now()
	err := r.RefreshOnce(ctx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("refresh cycle failed", "error", err, "elapsed", elapsed)
	} else {
		span.SetStatus(codes.Ok, "")
		r.logger.Debug("refresh cycle complete", "elapsed", elapsed)
	}
	snap := r.store.Load()
	span.SetAttributes(
		attribute.Int("monitor.workers", len(snap.Workers)),
		attribute.Int("monitor.tasks", len(snap.Tasks)),
		attribute.Int("monitor.queues", len(snap.Queues)),
	)
	if r.cycleDuration != nil {
		r.cycleDuration.Record(ctx, float64(elapsed.Milliseconds()))
	}
	if r.cycleCount != nil {
		r.cycleCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// RefreshOnce runs one fetch cycle and publishes the resulting snapshot.
// Concurrent calls are serialized; a call made while a cycle is in flight
// waits for it, then runs its own cycle. The three fetches fail
// independently: any collection that could not be fetched keeps its
// previous cycle's value, and the joined error is both returned and
// recorded on the snapshot. A cycle that fetches nothing new still
// publishes, so LastError reaches readers.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	prev := r.store.Load()

	var (
		wg      sync.WaitGroup
		workers []model.Worker
		tasks   []model.Task
		queues  []model.Queue

		workersErr, tasksErr, queuesErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		workers, workersErr = r.broker.Workers(ctx)
	}()
	go func() {
		defer wg.Done()
		tasks, tasksErr = r.broker.Tasks(ctx)
	}()
	go func() {
		defer wg.Done()
		queues, queuesErr = r.broker.Queues(ctx)
	}()
	wg.Wait()

	next := &model.Snapshot{
		Workers:      workers,
		Tasks:        tasks,
		Queues:       queues,
		LastRefresh:  time.Now().UTC(),
		DecodeErrors: prev.DecodeErrors,
	}
	if workersErr != nil {
		next.Workers = prev.Workers
	}
	if tasksErr != nil {
		next.Tasks = prev.Tasks
	}
	if queuesErr != nil {
		next.Queues = prev.Queues
	}
	if counter, ok := r.broker.(decodeErrorCounter); ok {
		next.DecodeErrors = counter.DecodeErrors()
	}

	err := errors.Join(workersErr, tasksErr, queuesErr)
	if err != nil {
		next.LastError = err.Error()
		// Nothing fresh this cycle; keep the previous refresh time so the
		// staleness of the data stays visible.
		if workersErr != nil && tasksErr != nil && queuesErr != nil {
			next.LastRefresh = prev.LastRefresh
		}
	}
	r.store.publish(next)
	return err
}
