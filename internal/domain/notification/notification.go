package notification

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind は通知の種類。
type Kind string

// KindWelcome は参加申請を受け付けた際のお礼メール。
const KindWelcome Kind = "welcome"

const defaultName = "Volunteer"

var (
	// ErrEmptyRecipient は宛先メールアドレスが空の場合に返される。
	ErrEmptyRecipient = errors.New("notification: recipient is empty")
	// ErrUnknownKind は未対応の通知種別を扱おうとした際に返される。
	ErrUnknownKind = errors.New("notification: unknown kind")
)

// Job はキューに積む通知 1 件分。
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	To         string    `json:"to"`
	Name       string    `json:"name"`
	PostTitle  string    `json:"postTitle"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// NewWelcome は参加申請のお礼メール用ジョブを組み立てる。
func NewWelcome(to, name, postTitle string) (*Job, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, ErrEmptyRecipient
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultName
	}
	return &Job{
		ID:         uuid.NewString(),
		Kind:       KindWelcome,
		To:         to,
		Name:       name,
		PostTitle:  postTitle,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Retry は試行回数を 1 つ進めた写しを返す。
func (j *Job) Retry() *Job {
	cp := *j
	cp.Attempts++
	return &cp
}
