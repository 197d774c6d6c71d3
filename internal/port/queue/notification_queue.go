package queue

import (
	"context"
	"errors"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
)

var (
	ErrQueueClosed   = errors.New("queue: ジョブキューが停止しました")
	ErrContextClosed = errors.New("queue: コンテキストが終了しました")
	ErrNilJob        = errors.New("queue: ジョブが nil です")
	ErrQueueFull     = errors.New("queue: ジョブキューが満杯です")
)

/**
 * 通知ジョブを溜めたり取り出したりする契約。
 * Dequeue はジョブが来るまで待ち、停止時は ErrQueueClosed を返す。
 */
type NotificationQueue interface {
	Enqueue(ctx context.Context, job *notification.Job) error
	Dequeue(ctx context.Context) (*notification.Job, error)
	Close() error
}
