package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	portqueue "github.com/souravMitra02/volunteer-project-server/internal/port/queue"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

const testProjectID = "firestore-integration-test"

func newJob(t *testing.T, to string) *notification.Job {
	t.Helper()
	job, err := notification.NewWelcome(to, "Alice", "Beach Cleanup")
	if err != nil {
		t.Fatalf("NewWelcome: %v", err)
	}
	return job
}

func TestNotificationQueue_EnqueueAndDequeue(t *testing.T) {
	client := newTestFirestoreClient(t)
	truncateCollection(t, client, notificationJobsCollection)

	queue, err := NewNotificationQueue(client)
	if err != nil {
		t.Fatalf("NewNotificationQueue: %v", err)
	}

	ctx := context.Background()
	job := newJob(t, "a@x.com")
	if err := queue.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got.ID != job.ID || got.To != "a@x.com" || got.PostTitle != "Beach Cleanup" {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestNotificationQueue_DuplicateEnqueueIsIgnored(t *testing.T) {
	client := newTestFirestoreClient(t)
	truncateCollection(t, client, notificationJobsCollection)

	queue, err := NewNotificationQueue(client)
	if err != nil {
		t.Fatalf("NewNotificationQueue: %v", err)
	}

	ctx := context.Background()
	job := newJob(t, "dup@x.com")
	if err := queue.Enqueue(ctx, job); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := queue.Enqueue(ctx, job); err != nil {
		t.Fatalf("second enqueue should be a no-op, got %v", err)
	}
	if _, err := queue.Dequeue(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if _, err := queue.Dequeue(short); !errors.Is(err, portqueue.ErrContextClosed) {
		t.Fatalf("expected queue to be empty, got %v", err)
	}
}

func TestNotificationQueue_DequeueWaitsForNewJob(t *testing.T) {
	client := newTestFirestoreClient(t)
	truncateCollection(t, client, notificationJobsCollection)

	queue, err := NewNotificationQueue(client)
	if err != nil {
		t.Fatalf("NewNotificationQueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		job *notification.Job
		err error
	}
	done := make(chan result)
	go func() {
		job, err := queue.Dequeue(ctx)
		done <- result{job: job, err: err}
	}()

	time.Sleep(200 * time.Millisecond)
	if err := queue.Enqueue(context.Background(), newJob(t, "delayed@x.com")); err != nil {
		t.Fatalf("enqueue delayed: %v", err)
	}

	select {
	case <-ctx.Done():
		t.Fatalf("context finished before job dequeued: %v", ctx.Err())
	case res := <-done:
		if res.err != nil {
			t.Fatalf("dequeue: %v", res.err)
		}
		if res.job.To != "delayed@x.com" {
			t.Fatalf("unexpected job: %+v", res.job)
		}
	}
}

func TestNotificationQueue_CloseStopsOperations(t *testing.T) {
	client := newTestFirestoreClient(t)

	queue, err := NewNotificationQueue(client)
	if err != nil {
		t.Fatalf("NewNotificationQueue: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("close returned error: %v", err)
	}

	if err := queue.Enqueue(context.Background(), newJob(t, "after@x.com")); !errors.Is(err, portqueue.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed on enqueue, got %v", err)
	}
	if _, err := queue.Dequeue(context.Background()); !errors.Is(err, portqueue.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed on dequeue, got %v", err)
	}
}

func TestNewNotificationQueue_RequiresClient(t *testing.T) {
	if _, err := NewNotificationQueue(nil); !errors.Is(err, errMissingClient) {
		t.Fatalf("expected errMissingClient, got %v", err)
	}
}

func TestTranslateContextError(t *testing.T) {
	if err := translateContextError(context.Canceled); !errors.Is(err, portqueue.ErrContextClosed) {
		t.Fatalf("expected ErrContextClosed, got %v", err)
	}
	other := errors.New("boom")
	if err := translateContextError(other); !errors.Is(err, other) {
		t.Fatalf("expected original error, got %v", err)
	}
}

// newTestFirestoreClient は Firestore エミュレータに接続するクライアントを返す。
func newTestFirestoreClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set; skipping Firestore queue tests")
	}
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		projectID = testProjectID
	}
	client, err := firestore.NewClient(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to create firestore client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// truncateCollection は指定コレクションを空にする。
func truncateCollection(t *testing.T, client *firestore.Client, collection string) {
	t.Helper()
	ctx := context.Background()
	iter := client.Collection(collection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			t.Fatalf("iterate %s: %v", collection, err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			t.Fatalf("delete doc %s: %v", doc.Ref.ID, err)
		}
	}
}
