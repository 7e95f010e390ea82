package redisbroker

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the OpenTelemetry instruments for the Redis broker. They
// are registered against the global meter provider, so without a configured
// SDK they are no-ops.
type metrics struct {
	decodeErrors metric.Int64Counter
}

func newMetrics(logger *slog.Logger) *metrics {
	meter := otel.Meter("github.com/celerymon/celerymon/broker/redisbroker")

	m := &metrics{}
	var err error
	m.decodeErrors, err = meter.Int64Counter(
		"broker.decode_errors",
		metric.WithDescription("Entries skipped because they could not be decoded"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Warn("metric registration failed", "error", err)
		return &metrics{}
	}
	return m
}

// recordDecodeError increments the decode-error counter, attributed to the
// source structure the entry came from (a queue name, the reserved index,
// or the result store).
func (m *metrics) recordDecodeError(ctx context.Context, source string) {
	if m == nil || m.decodeErrors == nil {
		return
	}
	m.decodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
