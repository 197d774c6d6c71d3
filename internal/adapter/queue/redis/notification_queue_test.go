package redis

import (
	"context"
	"testing"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*NotificationQueue, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client, err := OpenClient(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	q, err := NewNotificationQueue(client, "")
	require.NoError(t, err)
	return q, server
}

func newJob(t *testing.T, to string) *notification.Job {
	t.Helper()
	job, err := notification.NewWelcome(to, "Alice", "Beach Cleanup")
	require.NoError(t, err)
	return job
}

func TestNotificationQueue_FIFO(t *testing.T) {
	q, server := newTestQueue(t)
	ctx := context.Background()

	first := newJob(t, "first@x.com")
	second := newJob(t, "second@x.com")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	items, err := server.List(DefaultKey)
	require.NoError(t, err)
	require.Len(t, items, 2)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, "first@x.com", got.To)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
}

func TestNotificationQueue_DequeueWaitsForJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan *notification.Job, 1)
	go func() {
		job, err := q.Dequeue(ctx)
		if err == nil {
			done <- job
		}
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), newJob(t, "late@x.com")))

	job, ok := <-done
	require.True(t, ok)
	require.Equal(t, "late@x.com", job.To)
}

func TestNotificationQueue_ContextAndClose(t *testing.T) {
	q, _ := newTestQueue(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, queue.ErrContextClosed)

	require.ErrorIs(t, q.Enqueue(context.Background(), nil), queue.ErrNilJob)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	require.ErrorIs(t, q.Enqueue(context.Background(), newJob(t, "a@x.com")), queue.ErrQueueClosed)
	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, queue.ErrQueueClosed)
}

func TestNotificationQueue_RejectsBrokenPayload(t *testing.T) {
	q, server := newTestQueue(t)
	_, err := server.Lpush(DefaultKey, "{not json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background())
	require.Error(t, err)
	require.True(t, Error.Has(err))
}

func TestOpenClient_Errors(t *testing.T) {
	_, err := OpenClient(context.Background(), "http://nope")
	require.Error(t, err)

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()
	_, err = OpenClient(context.Background(), "redis://"+addr)
	require.Error(t, err)
}

func TestNewNotificationQueue_RequiresClient(t *testing.T) {
	_, err := NewNotificationQueue(nil, "")
	require.Error(t, err)
}
