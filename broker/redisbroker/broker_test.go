package redisbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerymon/celerymon/broker"
	"github.com/celerymon/celerymon/model"
)

// setupTestBroker creates a miniredis instance and returns a connected
// Broker with its clock pinned to a fixed instant.
func setupTestBroker(t *testing.T, opts broker.Options) (*Broker, *miniredis.Miniredis, time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	opts.URL = fmt.Sprintf("redis://%s", mr.Addr())

	b, err := Connect(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, mr, now
}

// seedQueued pushes an encoded envelope onto a queue list.
func seedQueued(t *testing.T, mr *miniredis.Miniredis, queue string, env *envelope) {
	t.Helper()
	raw, err := encodeEnvelope(env)
	require.NoError(t, err)
	_, err = mr.Lpush(queue, raw)
	require.NoError(t, err)
}

// seedUnacked records a reserved delivery in the unacked hash.
func seedUnacked(t *testing.T, mr *miniredis.Miniredis, tag string, env *envelope, routingKey string) {
	t.Helper()
	inner, err := encodeEnvelope(env)
	require.NoError(t, err)
	entry, err := json.Marshal([]any{json.RawMessage(inner), "", routingKey})
	require.NoError(t, err)
	mr.HSet(unackedKey, tag, string(entry))
}

// seedMeta stores a result record for a task id.
func seedMeta(t *testing.T, mr *miniredis.Miniredis, taskID string, meta map[string]any) {
	t.Helper()
	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, mr.Set(taskMetaPrefix+taskID, string(raw)))
}

// TestConnect tests connection establishment and URL validation.
func TestConnect(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)
		b, err := Connect(context.Background(), broker.Options{
			URL: fmt.Sprintf("redis://%s", mr.Addr()),
		})
		require.NoError(t, err)
		require.NotNil(t, b)
		require.NoError(t, b.Close())
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := Connect(context.Background(), broker.Options{URL: "://nope"})
		require.Error(t, err)
		assert.True(t, broker.IsKind(err, broker.KindValidation))
	})

	t.Run("unreachable broker", func(t *testing.T) {
		_, err := Connect(context.Background(), broker.Options{
			URL:            "redis://127.0.0.1:1",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
	})
}

// TestTasks tests reconstruction from queues, the reserved index, and the
// result store.
func TestTasks(t *testing.T) {
	t.Run("queued envelopes become pending tasks", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedQueued(t, mr, defaultQueue, &envelope{ID: "task-1", Name: "app.tasks.add", Args: "[1,2]"})
		seedQueued(t, mr, defaultQueue, &envelope{ID: "task-2", Name: "app.tasks.add", Args: "[3,4]"})

		tasks, err := b.Tasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		for _, task := range tasks {
			assert.Equal(t, model.StatusPending, task.Status)
			assert.Equal(t, defaultQueue, task.Queue)
		}
	})

	t.Run("malformed entries are skipped and counted", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedQueued(t, mr, defaultQueue, &envelope{ID: "task-1", Name: "t"})
		_, err := mr.Lpush(defaultQueue, "not an envelope")
		require.NoError(t, err)
		seedQueued(t, mr, defaultQueue, &envelope{ID: "task-2", Name: "t"})

		tasks, err := b.Tasks(context.Background())
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
		assert.Equal(t, uint64(1), b.DecodeErrors())
	})

	t.Run("result record wins status conflict", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedQueued(t, mr, defaultQueue, &envelope{ID: "task-1", Name: "app.tasks.add"})
		seedMeta(t, mr, "task-1", map[string]any{
			"status":    "SUCCESS",
			"result":    42,
			"date_done": "2026-08-01T11:30:00Z",
		})

		tasks, err := b.Tasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, model.StatusSuccess, tasks[0].Status)
		assert.Equal(t, "42", tasks[0].Result)
		assert.Equal(t, time.Date(2026, 8, 1, 11, 30, 0, 0, time.UTC), tasks[0].Timestamp)
		// Envelope identity survives a plain record.
		assert.Equal(t, "app.tasks.add", tasks[0].Name)
	})

	t.Run("extended result record stands alone", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedMeta(t, mr, "task-ext", map[string]any{
			"status": "FAILURE",
			"name":   "app.tasks.crash",
			"args":   []int{1},
			"kwargs": map[string]any{},
			"worker": "gen1@worker-1",
			"queue":  "priority",
			"traceback": "Traceback (most recent call last): boom",
		})

		tasks, err := b.Tasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, model.StatusFailure, tasks[0].Status)
		assert.Equal(t, "app.tasks.crash", tasks[0].Name)
		assert.Equal(t, "worker-1", tasks[0].Worker)
		assert.Equal(t, "priority", tasks[0].Queue)
		assert.Contains(t, tasks[0].Traceback, "boom")
	})

	t.Run("reserved deliveries become active tasks with a worker", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedUnacked(t, mr, "tag-1", &envelope{
			ID: "task-1", Name: "app.tasks.work", Origin: "gen1@worker-1",
		}, "priority")

		tasks, err := b.Tasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, model.StatusActive, tasks[0].Status)
		assert.Equal(t, "worker-1", tasks[0].Worker)
		assert.Equal(t, "priority", tasks[0].Queue)
	})

	t.Run("revoked set marks non-terminal tasks", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedQueued(t, mr, defaultQueue, &envelope{ID: "task-pending", Name: "t"})
		seedQueued(t, mr, defaultQueue, &envelope{ID: "task-done", Name: "t"})
		seedMeta(t, mr, "task-done", map[string]any{"status": "SUCCESS"})
		mr.SAdd(revokedKey, "task-pending", "task-done")

		tasks, err := b.Tasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 2)

		byID := map[string]model.Task{}
		for _, task := range tasks {
			byID[task.ID] = task
		}
		assert.Equal(t, model.StatusRevoked, byID["task-pending"].Status)
		assert.Equal(t, model.StatusSuccess, byID["task-done"].Status)
	})

	t.Run("empty broker yields no tasks", func(t *testing.T) {
		b, _, _ := setupTestBroker(t, broker.Options{})
		tasks, err := b.Tasks(context.Background())
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

// TestWorkers tests worker reconstruction and liveness classification.
func TestWorkers(t *testing.T) {
	t.Run("result records attribute counters", func(t *testing.T) {
		b, mr, now := setupTestBroker(t, broker.Options{})
		seedMeta(t, mr, "task-1", map[string]any{
			"status": "SUCCESS", "worker": "gen1@worker-1",
			"date_done": now.Add(-time.Minute).Format(time.RFC3339),
		})
		seedMeta(t, mr, "task-2", map[string]any{
			"status": "FAILURE", "worker": "gen1@worker-1", "queue": "priority",
			"date_done": now.Add(-2 * time.Minute).Format(time.RFC3339),
		})

		workers, err := b.Workers(context.Background())
		require.NoError(t, err)
		require.Len(t, workers, 1)

		w := workers[0]
		assert.Equal(t, "worker-1", w.Hostname)
		assert.Equal(t, uint64(2), w.Processed)
		assert.Equal(t, uint64(1), w.Failed)
		assert.Equal(t, model.StatusOnline, w.Status)
		assert.Equal(t, []string{"priority"}, w.Queues)
		assert.Equal(t, now.Add(-time.Minute), w.LastSeen)
	})

	t.Run("heartbeat boundary is inclusive", func(t *testing.T) {
		window := 5 * time.Minute
		b, mr, now := setupTestBroker(t, broker.Options{HeartbeatWindow: window})
		seedMeta(t, mr, "task-edge", map[string]any{
			"status": "SUCCESS", "worker": "gen1@worker-edge",
			"date_done": now.Add(-window).Format(time.RFC3339),
		})
		seedMeta(t, mr, "task-old", map[string]any{
			"status": "SUCCESS", "worker": "gen1@worker-old",
			"date_done": now.Add(-window - time.Second).Format(time.RFC3339),
		})

		workers, err := b.Workers(context.Background())
		require.NoError(t, err)
		require.Len(t, workers, 2)

		byHost := map[string]model.Worker{}
		for _, w := range workers {
			byHost[w.Hostname] = w
		}
		assert.Equal(t, model.StatusOnline, byHost["worker-edge"].Status)
		assert.Equal(t, model.StatusOffline, byHost["worker-old"].Status)
	})

	t.Run("reserved deliveries attribute active tasks", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedUnacked(t, mr, "tag-1", &envelope{ID: "task-1", Name: "t", Origin: "gen1@worker-1"}, "celery")
		seedUnacked(t, mr, "tag-2", &envelope{ID: "task-2", Name: "t", Origin: "gen1@worker-1"}, "celery")

		workers, err := b.Workers(context.Background())
		require.NoError(t, err)
		require.Len(t, workers, 1)
		assert.Equal(t, []string{"task-1", "task-2"}, workers[0].ActiveTasks)
		assert.Equal(t, model.StatusOnline, workers[0].Status)
		// Pool size is unknowable on this backend; it must not be invented.
		assert.Zero(t, workers[0].Concurrency)
	})

	t.Run("no evidence means no workers", func(t *testing.T) {
		b, _, _ := setupTestBroker(t, broker.Options{})
		workers, err := b.Workers(context.Background())
		require.NoError(t, err)
		assert.Empty(t, workers)
	})

	t.Run("default queue assumed without routing evidence", func(t *testing.T) {
		b, mr, now := setupTestBroker(t, broker.Options{})
		seedMeta(t, mr, "task-1", map[string]any{
			"status": "SUCCESS", "worker": "gen1@worker-1",
			"date_done": now.Format(time.RFC3339),
		})

		workers, err := b.Workers(context.Background())
		require.NoError(t, err)
		require.Len(t, workers, 1)
		assert.Equal(t, []string{defaultQueue}, workers[0].Queues)
	})
}

// TestQueues tests queue discovery and the drop rule for vanished queues.
func TestQueues(t *testing.T) {
	t.Run("default queue always present", func(t *testing.T) {
		b, _, _ := setupTestBroker(t, broker.Options{})

		queues, err := b.Queues(context.Background())
		require.NoError(t, err)
		require.Len(t, queues, 1)
		assert.Equal(t, defaultQueue, queues[0].Name)
		assert.Equal(t, int64(0), queues[0].Length)
	})

	t.Run("bound queues survive while empty", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		mr.SAdd(bindingPrefix+"celery", "email\x06\x16\x06\x16email")

		queues, err := b.Queues(context.Background())
		require.NoError(t, err)
		require.Len(t, queues, 2)

		names := []string{queues[0].Name, queues[1].Name}
		assert.Contains(t, names, "email")
		assert.Contains(t, names, defaultQueue)
	})

	t.Run("lengths reflect queue contents", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		for i := 0; i < 3; i++ {
			seedQueued(t, mr, defaultQueue, &envelope{ID: fmt.Sprintf("task-%d", i), Name: "t"})
		}

		queues, err := b.Queues(context.Background())
		require.NoError(t, err)
		require.Len(t, queues, 1)
		assert.Equal(t, int64(3), queues[0].Length)
	})

	t.Run("reserved routing keys contribute queues and consumers", func(t *testing.T) {
		b, mr, _ := setupTestBroker(t, broker.Options{})
		seedUnacked(t, mr, "tag-1", &envelope{ID: "task-1", Name: "t", Origin: "gen1@worker-1"}, "priority")
		seedUnacked(t, mr, "tag-2", &envelope{ID: "task-2", Name: "t", Origin: "gen2@worker-2"}, "priority")

		queues, err := b.Queues(context.Background())
		require.NoError(t, err)

		var priority *model.Queue
		for i := range queues {
			if queues[i].Name == "priority" {
				priority = &queues[i]
			}
		}
		require.NotNil(t, priority)
		assert.Equal(t, 2, priority.Consumers)
	})
}
