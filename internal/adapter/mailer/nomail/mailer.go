package nomail

import (
	"context"

	"github.com/souravMitra02/volunteer-project-server/internal/port/mailer"

	"go.uber.org/zap"
)

// Mailer は送信せずにログへ残すだけのメーラー。SMTP の資格情報が無い環境で使う。
type Mailer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Mailer {
	return &Mailer{log: log}
}

func (m *Mailer) Send(ctx context.Context, msg *mailer.Message) error {
	if msg == nil {
		return nil
	}
	m.log.Info("mail delivery skipped",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}

var _ mailer.Mailer = (*Mailer)(nil)
