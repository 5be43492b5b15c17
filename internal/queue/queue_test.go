package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	tasks []Task
	fail  bool
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	task, err := DecodeTask(msg)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
	if h.fail {
		return errors.New("boom")
	}
	return nil
}

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testConfig() ConsumerConfig {
	return ConsumerConfig{
		Stream: "media:ingest",
		Group:  "media-workers",
		Name:   "worker-test",
		Block:  -1,
	}
}

func TestProducerConsumer(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	handler := &recordingHandler{}
	consumer := NewConsumer(client, testConfig(), zerolog.Nop(), handler)
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, consumer.EnsureGroup(ctx))

	producer := NewProducer(client, "media:ingest")
	_, err := producer.Enqueue(ctx, Task{Type: TaskIngest, ImageID: "img1"})
	require.NoError(t, err)
	_, err = producer.Enqueue(ctx, Task{Type: TaskCleanup})
	require.NoError(t, err)

	require.NoError(t, consumer.read(ctx))
	require.Equal(t, []Task{{Type: TaskIngest, ImageID: "img1"}, {Type: TaskCleanup}}, handler.tasks)

	pending, err := client.XPending(ctx, "media:ingest", "media-workers").Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)
}

func TestFailedMessagesStayPendingAndAreClaimed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	handler := &recordingHandler{fail: true}
	consumer := NewConsumer(client, testConfig(), zerolog.Nop(), handler)
	require.NoError(t, consumer.EnsureGroup(ctx))

	_, err := NewProducer(client, "media:ingest").Enqueue(ctx, Task{Type: TaskIngest, ImageID: "img2"})
	require.NoError(t, err)

	require.NoError(t, consumer.read(ctx))
	pending, err := client.XPending(ctx, "media:ingest", "media-workers").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), pending.Count)

	handler.fail = false
	require.NoError(t, consumer.claimStalled(ctx))
	require.Len(t, handler.tasks, 2)

	pending, err = client.XPending(ctx, "media:ingest", "media-workers").Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)
}

func TestNilProducerIsNoop(t *testing.T) {
	var p *Producer
	id, err := p.Enqueue(context.Background(), Task{Type: TaskCleanup})
	require.NoError(t, err)
	require.Empty(t, id)
}
