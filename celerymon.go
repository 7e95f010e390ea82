package celerymon

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/celerymon/celerymon/broker"
	"github.com/celerymon/celerymon/broker/amqpbroker"
	"github.com/celerymon/celerymon/broker/redisbroker"
)

// Connect selects a broker backend by URL scheme and establishes the
// connection. Supported schemes:
//
//	redis://, rediss:// - Redis list backend
//	amqp://, amqps://   - AMQP backend (not yet implemented)
//
// The returned broker is safe for concurrent use by the refresh loop and
// user actions.
func Connect(ctx context.Context, opts broker.Options) (broker.Broker, error) {
	const op = "celerymon.Connect"

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, broker.NewValidationError(op, fmt.Errorf("invalid broker URL: %w", err))
	}

	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		return redisbroker.Connect(ctx, opts)
	case "amqp", "amqps":
		return amqpbroker.Connect(ctx, opts)
	default:
		return nil, broker.NewValidationError(op, fmt.Errorf("unsupported broker scheme %q", u.Scheme))
	}
}
