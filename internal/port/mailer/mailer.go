package mailer

import (
	"context"
	"errors"
)

// ErrMailerUnavailable は送信先サーバーに接続できない場合に返される。
var ErrMailerUnavailable = errors.New("mailer: メールサーバーに接続できません")

// Message は送信する HTML メール 1 通。
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer はメール送信の契約。
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
