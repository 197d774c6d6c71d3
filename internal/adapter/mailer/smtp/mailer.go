package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/port/mailer"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error は SMTP 送信由来のエラー分類。
var Error = errs.Class("smtp mailer")

var (
	errMissingHost = errors.New("smtpmailer: SMTP ホストが指定されていません")
	errMissingFrom = errors.New("smtpmailer: 送信元アドレスが指定されていません")
	errNoRecipient = errors.New("smtpmailer: 宛先がありません")
)

// sendMail はテストで差し替えられる送信処理。net/smtp.SendMail は対応サーバーで STARTTLS を使う。
var sendMail = smtp.SendMail

// Config は SMTP 接続設定。
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer は SMTP サーバー経由で HTML メールを送る。
type Mailer struct {
	log  *zap.Logger
	cfg  Config
	addr string
	auth smtp.Auth
}

/**
 * 設定を検証し、資格情報があれば PLAIN 認証付きの送信器を作る。
 */
func New(log *zap.Logger, cfg Config) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errMissingHost
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errMissingFrom
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	m := &Mailer{
		log:  log,
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m, nil
}

/**
 * メッセージを MIME 形式に組み立てて送信する。
 * net/smtp は context を受け取らないため、送信は別 goroutine で行い ctx の終了を待ち合わせる。
 */
func (m *Mailer) Send(ctx context.Context, msg *mailer.Message) error {
	if msg == nil || len(msg.To) == 0 {
		return errNoRecipient
	}
	body := m.compose(msg, time.Now())

	done := make(chan error, 1)
	go func() {
		done <- sendMail(m.addr, m.auth, m.cfg.From, msg.To, body)
	}()

	select {
	case <-ctx.Done():
		return Error.Wrap(ctx.Err())
	case err := <-done:
		if err != nil {
			m.log.Warn("smtp send failed", zap.String("addr", m.addr), zap.Strings("to", msg.To), zap.Error(err))
			return Error.Wrap(fmt.Errorf("%w: %v", mailer.ErrMailerUnavailable, err))
		}
		m.log.Debug("smtp sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	}
}

func (m *Mailer) compose(msg *mailer.Message, now time.Time) []byte {
	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}
	header("From", m.cfg.From)
	header("To", strings.Join(msg.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)
	return buf.Bytes()
}

var _ mailer.Mailer = (*Mailer)(nil)
