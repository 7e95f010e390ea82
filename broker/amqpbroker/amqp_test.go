package amqpbroker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerymon/celerymon/broker"
)

// TestUnsupported tests that every operation reports the backend gap.
func TestUnsupported(t *testing.T) {
	b, err := Connect(context.Background(), broker.Options{URL: "amqp://localhost:5672"})
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()

	_, err = b.Workers(ctx)
	assert.ErrorIs(t, err, broker.ErrUnsupported)

	_, err = b.Tasks(ctx)
	assert.ErrorIs(t, err, broker.ErrUnsupported)

	_, err = b.Queues(ctx)
	assert.ErrorIs(t, err, broker.ErrUnsupported)

	_, err = b.RetryTask(ctx, "task-1")
	assert.ErrorIs(t, err, broker.ErrUnsupported)

	err = b.RevokeTask(ctx, "task-1")
	assert.ErrorIs(t, err, broker.ErrUnsupported)

	_, err = b.PurgeQueue(ctx, "celery")
	assert.ErrorIs(t, err, broker.ErrUnsupported)

	assert.NoError(t, b.Close())
}
