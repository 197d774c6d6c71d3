package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/port/mailer"

	"go.uber.org/zap"
)

// ErrNilJob は配信対象のジョブが nil の場合に返される。
var ErrNilJob = errors.New("notify: job is nil")

/**
 * 通知ジョブをメールに組み立てて送るユースケース
 * renderer: 件名と本文の組み立て
 * mailer: 送信先
 */
type Service struct {
	log      *zap.Logger
	renderer *notification.Renderer
	mailer   mailer.Mailer
}

func NewService(log *zap.Logger, renderer *notification.Renderer, m mailer.Mailer) *Service {
	return &Service{log: log, renderer: renderer, mailer: m}
}

// Deliver はジョブを描画して 1 通送る。
func (s *Service) Deliver(ctx context.Context, job *notification.Job) error {
	if job == nil {
		return ErrNilJob
	}
	rendered, err := s.renderer.Render(job)
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, &mailer.Message{
		To:      []string{job.To},
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
	})
	if err != nil {
		return fmt.Errorf("deliver %s to %s: %w", job.Kind, job.To, err)
	}
	return nil
}

/**
 * キューを通さずにお礼メールをその場で送る。
 * 宛先が空なら notification.ErrEmptyRecipient を返す。
 */
func (s *Service) SendDirect(ctx context.Context, to, name, postTitle string) error {
	job, err := notification.NewWelcome(to, name, postTitle)
	if err != nil {
		return err
	}
	if err := s.Deliver(ctx, job); err != nil {
		s.log.Error("direct mail failed", zap.String("to", job.To), zap.Error(err))
		return err
	}
	s.log.Info("direct mail sent", zap.String("to", job.To))
	return nil
}
