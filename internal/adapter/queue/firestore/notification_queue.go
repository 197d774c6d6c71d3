package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	notificationJobsCollection = "notification_jobs"
	pollInterval               = 200 * time.Millisecond
)

var (
	errMissingClient   = errors.New("firestorenotificationqueue: Firestore クライアントが指定されていません")
	errNoJobAvailable  = errors.New("firestorenotificationqueue: キューが空です")
	errDecodeJobFailed = errors.New("firestorenotificationqueue: ドキュメントの復元に失敗しました")
)

// Firestore に記録する通知ジョブ 1 件分の姿
type jobDocument struct {
	Kind       string    `firestore:"kind"`
	To         string    `firestore:"to"`
	Name       string    `firestore:"name"`
	PostTitle  string    `firestore:"postTitle"`
	Attempts   int64     `firestore:"attempts"`
	EnqueuedAt time.Time `firestore:"enqueuedAt"`
	Queued     time.Time `firestore:"created_at,serverTimestamp"`
}

// Firestore を永続化に使う通知キュー。API とワーカーが別プロセスでも共有できる。
type NotificationQueue struct {
	client     *firestore.Client
	collection string
	closeOnce  sync.Once
	closedCh   chan struct{}
}

/**
 * Firestore 接続を受け取り、notification_jobs を背後に使う通知キューを組み立てる。
 */
func NewNotificationQueue(client *firestore.Client) (*NotificationQueue, error) {
	if client == nil {
		return nil, errMissingClient
	}
	return &NotificationQueue{
		client:     client,
		collection: notificationJobsCollection,
		closedCh:   make(chan struct{}),
	}, nil
}

/**
 * ジョブ ID をドキュメント ID として書き込む。同じジョブの再登録は成功扱いにする。
 */
func (q *NotificationQueue) Enqueue(ctx context.Context, job *notification.Job) error {
	if err := q.ensureReady(ctx); err != nil {
		return err
	}
	if job == nil {
		return queue.ErrNilJob
	}

	doc := q.client.Collection(q.collection).Doc(job.ID)
	payload := jobDocument{
		Kind:       string(job.Kind),
		To:         job.To,
		Name:       job.Name,
		PostTitle:  job.PostTitle,
		Attempts:   int64(job.Attempts),
		EnqueuedAt: job.EnqueuedAt,
	}
	_, err := doc.Create(ctx, payload)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return translateContextError(err)
	}
	return nil
}

/**
 * Firestore 上で最も古い通知ジョブを 1 件だけ取得し、見つかるまで待機を繰り返す。
 */
func (q *NotificationQueue) Dequeue(ctx context.Context) (*notification.Job, error) {
	for {
		if err := q.ensureReady(ctx); err != nil {
			return nil, err
		}
		job, err := q.dequeueOnce(ctx)
		if err == nil {
			return job, nil
		}
		// ジョブがまだ無い場合は停止指示を監視しながら待機して再試行する
		if errors.Is(err, errNoJobAvailable) {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", queue.ErrContextClosed, ctx.Err())
			case <-q.closedCh:
				return nil, queue.ErrQueueClosed
			case <-time.After(pollInterval):
				continue
			}
		}
		return nil, err
	}
}

/**
 * 以降の登録・取り出しを止めるため通知チャネルを閉じる。
 */
func (q *NotificationQueue) Close() error {
	if q == nil {
		return nil
	}
	q.closeOnce.Do(func() {
		close(q.closedCh)
	})
	return nil
}

func (q *NotificationQueue) ensureReady(ctx context.Context) error {
	if q == nil {
		return queue.ErrQueueClosed
	}
	select {
	case <-q.closedCh:
		return queue.ErrQueueClosed
	default:
	}
	if ctx == nil {
		return fmt.Errorf("%w: context が nil です", queue.ErrContextClosed)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", queue.ErrContextClosed, ctx.Err())
	default:
		return nil
	}
}

/**
 * 一番古いジョブをトランザクションで取得し、その場で削除する。
 */
func (q *NotificationQueue) dequeueOnce(ctx context.Context) (*notification.Job, error) {
	query := q.client.Collection(q.collection).OrderBy("created_at", firestore.Asc).Limit(1)
	var dequeued *notification.Job
	// 取得と削除を 1 トランザクションにまとめ、複数ワーカーでの二重送信を避ける
	err := q.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return errNoJobAvailable
		}
		var payload jobDocument
		if err := docs[0].DataTo(&payload); err != nil {
			return fmt.Errorf("%w: %v", errDecodeJobFailed, err)
		}
		if payload.To == "" {
			return fmt.Errorf("%w: to が空です", errDecodeJobFailed)
		}
		if err := tx.Delete(docs[0].Ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return errNoJobAvailable
			}
			return err
		}
		dequeued = &notification.Job{
			ID:         docs[0].Ref.ID,
			Kind:       notification.Kind(payload.Kind),
			To:         payload.To,
			Name:       payload.Name,
			PostTitle:  payload.PostTitle,
			Attempts:   int(payload.Attempts),
			EnqueuedAt: payload.EnqueuedAt,
		}
		return nil
	}, firestore.MaxAttempts(5))
	if err != nil {
		if errors.Is(err, errNoJobAvailable) {
			return nil, errNoJobAvailable
		}
		return nil, translateContextError(fmt.Errorf("dequeue tx: %w", err))
	}
	return dequeued, nil
}

/**
 * コンテキスト関連のエラーを共通の ErrContextClosed にそろえて返す。
 */
func translateContextError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", queue.ErrContextClosed, err)
	}
	return err
}

var _ queue.NotificationQueue = (*NotificationQueue)(nil)
