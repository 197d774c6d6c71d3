package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"
)

// 同一プロセス内のディスパッチャへ渡すチャネル型の通知キュー。
type NotificationQueue struct {
	ch        chan *notification.Job
	closeOnce sync.Once
	closedCh  chan struct{}
}

/**
 * 指定バッファでチャネルを用意し、最小 1 件の待ち行列を確保する。
 */
func NewNotificationQueue(buffer int) *NotificationQueue {
	if buffer <= 0 {
		buffer = 1
	}
	return &NotificationQueue{
		ch:       make(chan *notification.Job, buffer),
		closedCh: make(chan struct{}),
	}
}

/**
 * 停止前かつ文脈が生きていればジョブをチャネルへ積む。
 * バッファが埋まっていれば待たずに ErrQueueFull を返す。
 */
func (q *NotificationQueue) Enqueue(ctx context.Context, job *notification.Job) error {
	if job == nil {
		return queue.ErrNilJob
	}
	select {
	case <-q.closedCh:
		return queue.ErrQueueClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrContextClosed, err)
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return queue.ErrQueueFull
	}
}

/**
 * 文脈が続く限りジョブを待つ。停止後は溜まっている分を出し切ってから ErrQueueClosed を返す。
 */
func (q *NotificationQueue) Dequeue(ctx context.Context) (*notification.Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	default:
	}
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", queue.ErrContextClosed, ctx.Err())
	case job := <-q.ch:
		return job, nil
	case <-q.closedCh:
		return nil, queue.ErrQueueClosed
	}
}

// Close は以降の登録と待機を止める。
func (q *NotificationQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.closedCh)
	})
	return nil
}

var _ queue.NotificationQueue = (*NotificationQueue)(nil)
