package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/errs"
)

const (
	// DefaultKey は通知ジョブを積むリストのキー。
	DefaultKey = "volunteerhub:notifications"
	// BRPOP の 1 回あたりの待ち時間。停止確認の間隔も兼ねる。
	blockTimeout = time.Second
)

// Error は Redis キュー由来のエラー分類。
var Error = errs.Class("redis queue")

/**
 * redis:// 形式の URL からクライアントを作り、疎通を確認してから返す。
 */
func OpenClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, Error.New("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, Error.New("ping failed: %v", err)
	}
	return client, nil
}

// Redis のリストを LPUSH/BRPOP で使う通知キュー。
type NotificationQueue struct {
	client    redis.Cmdable
	key       string
	closeOnce sync.Once
	closedCh  chan struct{}
}

// NewNotificationQueue は既存クライアントの上にキューを作る。クライアントの解放は呼び出し側が持つ。
func NewNotificationQueue(client redis.Cmdable, key string) (*NotificationQueue, error) {
	if client == nil {
		return nil, Error.New("client is missing")
	}
	if key == "" {
		key = DefaultKey
	}
	return &NotificationQueue{
		client:   client,
		key:      key,
		closedCh: make(chan struct{}),
	}, nil
}

/**
 * ジョブを JSON にしてリストの先頭へ積む。
 */
func (q *NotificationQueue) Enqueue(ctx context.Context, job *notification.Job) error {
	if err := q.ensureReady(ctx); err != nil {
		return err
	}
	if job == nil {
		return queue.ErrNilJob
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return Error.Wrap(err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return translateError(err)
	}
	return nil
}

/**
 * リスト末尾から 1 件取り出す。空の間は blockTimeout ごとに停止状態を確かめながら待つ。
 */
func (q *NotificationQueue) Dequeue(ctx context.Context) (*notification.Job, error) {
	for {
		if err := q.ensureReady(ctx); err != nil {
			return nil, err
		}
		res, err := q.client.BRPop(ctx, blockTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, translateError(err)
		}
		// BRPOP は [キー, 値] を返す
		if len(res) != 2 {
			return nil, Error.New("unexpected BRPOP reply: %v", res)
		}
		var job notification.Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return nil, Error.New("decode job: %v", err)
		}
		return &job, nil
	}
}

// Close は以降の登録と待機を止める。
func (q *NotificationQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.closedCh)
	})
	return nil
}

func (q *NotificationQueue) ensureReady(ctx context.Context) error {
	select {
	case <-q.closedCh:
		return queue.ErrQueueClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrContextClosed, err)
	}
	return nil
}

func translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", queue.ErrContextClosed, err)
	}
	return Error.Wrap(err)
}

var _ queue.NotificationQueue = (*NotificationQueue)(nil)
