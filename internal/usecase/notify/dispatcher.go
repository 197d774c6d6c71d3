package notify

import (
	"context"
	"errors"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "volunteerhub_notifications_total",
	Help: "Notification deliveries by outcome.",
}, []string{"outcome"})

const (
	outcomeSent    = "sent"
	outcomeRetried = "retried"
	outcomeDropped = "dropped"

	dequeueBackoff = 500 * time.Millisecond
	retryBackoff   = time.Second
)

// Deliverer は 1 件のジョブを配信する。
type Deliverer interface {
	Deliver(ctx context.Context, job *notification.Job) error
}

/**
 * キューからジョブを取り出して配信し続けるワーカー
 * maxAttempts: 1 ジョブあたりの送信試行回数（1 なら再試行しない）
 */
type Dispatcher struct {
	log         *zap.Logger
	queue       queue.NotificationQueue
	deliverer   Deliverer
	maxAttempts int
	backoff     time.Duration
	retryDelay  time.Duration
}

func NewDispatcher(log *zap.Logger, q queue.NotificationQueue, d Deliverer, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		log:         log,
		queue:       q,
		deliverer:   d,
		maxAttempts: maxAttempts,
		backoff:     dequeueBackoff,
		retryDelay:  retryBackoff,
	}
}

/**
 * 取り出したジョブを順に配信し、終了指示かキュー停止で戻る。
 * 配信の失敗は呼び出し側へ返さずログとメトリクスに残す。
 */
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher shutting down", zap.Error(ctx.Err()))
			return nil
		default:
		}

		job, err := d.queue.Dequeue(ctx)
		if err != nil {
			// 中断やキュー停止はそのまま終了する
			if errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, queue.ErrQueueClosed) ||
				errors.Is(err, queue.ErrContextClosed) {
				return nil
			}
			// それ以外は短い待機後に再試行
			d.log.Warn("dequeue error", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d.backoff):
			}
			continue
		}

		d.handle(ctx, job)
	}
}

/**
 * 1 件のジョブを試行回数の上限まで配信する。
 * 再試行はこの場で retryDelay 待ってから行い、キューへは積み直さない。
 */
func (d *Dispatcher) handle(ctx context.Context, job *notification.Job) {
	for {
		err := d.deliverer.Deliver(ctx, job)
		if err == nil {
			deliveries.WithLabelValues(outcomeSent).Inc()
			d.log.Info("notification sent", zap.String("job_id", job.ID), zap.String("to", job.To))
			return
		}

		fields := []zap.Field{
			zap.String("job_id", job.ID),
			zap.String("to", job.To),
			zap.Int("attempt", job.Attempts+1),
			zap.Error(err),
		}
		// 描画できないジョブは何度送っても同じなので捨てる
		permanent := errors.Is(err, notification.ErrUnknownKind) || errors.Is(err, notification.ErrEmptyRecipient)
		if permanent || job.Attempts+1 >= d.maxAttempts {
			deliveries.WithLabelValues(outcomeDropped).Inc()
			d.log.Error("notification dropped", fields...)
			return
		}

		deliveries.WithLabelValues(outcomeRetried).Inc()
		d.log.Warn("notification retry scheduled", fields...)
		select {
		case <-ctx.Done():
			deliveries.WithLabelValues(outcomeDropped).Inc()
			d.log.Error("notification dropped on shutdown", fields...)
			return
		case <-time.After(d.retryDelay):
		}
		job = job.Retry()
	}
}
