package request

import (
	"errors"
	"strings"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
)

// ID は参加申請の識別子。採番はストアが行う。
type ID string

// State は参加申請の状態を表す。
type State string

const (
	// StatePending は申請を書き込み済みで、まだ席の確保が確定していない状態。
	StatePending State = "pending"
	// StateActive は席を確保済みの有効な申請。
	StateActive State = "active"
	// StateCancelling は席の返却中。
	StateCancelling State = "cancelling"
	// StateCancelled は取り消し済み。ドキュメントは削除されるため保存されることはない。
	StateCancelled State = "cancelled"
)

// DefaultVolunteerName は氏名が無い場合にメールの宛名として使う。
const DefaultVolunteerName = "Volunteer"

// ストア上のフィールド名。
const (
	FieldPostID         = "postId"
	FieldVolunteerEmail = "volunteerEmail"
	FieldVolunteerName  = "volunteerName"
	FieldPostTitle      = "postTitle"
	FieldState          = "state"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
)

var (
	// ErrEmptyPostID は申請先の投稿 ID が空の場合に返される。
	ErrEmptyPostID = errors.New("request: post id is empty")
	// ErrEmptyVolunteerEmail は申請者のメールアドレスが空の場合に返される。
	ErrEmptyVolunteerEmail = errors.New("request: volunteer email is empty")
	// ErrEmptyID は復元時に ID が空だった場合に返される。
	ErrEmptyID = errors.New("request: id is empty")
	// ErrInvalidState は不正な状態を復元しようとした際に返される。
	ErrInvalidState = errors.New("request: invalid state")
	// ErrInvalidStateTransition は許可されていない状態遷移が要求された際に返される。
	ErrInvalidStateTransition = errors.New("request: invalid state transition")
)

// Fields は参加申請を組み立てる際の入力値。
type Fields struct {
	PostID         post.ID
	VolunteerEmail string
	VolunteerName  string
	PostTitle      string
	// Attributes は呼び出し側が付けた任意の追加項目。
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Request はボランティアの参加申請。
type Request struct {
	id     ID
	fields Fields
	state  State
}

// New は申請内容を検証し、pending 状態の申請を生成する。
func New(f Fields) (*Request, error) {
	if strings.TrimSpace(string(f.PostID)) == "" {
		return nil, ErrEmptyPostID
	}
	if strings.TrimSpace(f.VolunteerEmail) == "" {
		return nil, ErrEmptyVolunteerEmail
	}
	f.Attributes = cloneAttributes(f.Attributes)
	return &Request{fields: f, state: StatePending}, nil
}

// Restore は保存済みの申請を復元する。
// 状態を持たない旧形式のドキュメントは active として扱う。
func Restore(id ID, f Fields, state State) (*Request, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if state == "" {
		state = StateActive
	}
	if !state.isStored() {
		return nil, ErrInvalidState
	}
	f.Attributes = cloneAttributes(f.Attributes)
	return &Request{id: id, fields: f, state: state}, nil
}

func (r *Request) ID() ID                 { return r.id }
func (r *Request) PostID() post.ID        { return r.fields.PostID }
func (r *Request) VolunteerEmail() string { return r.fields.VolunteerEmail }
func (r *Request) VolunteerName() string  { return r.fields.VolunteerName }
func (r *Request) PostTitle() string      { return r.fields.PostTitle }
func (r *Request) State() State           { return r.state }
func (r *Request) CreatedAt() time.Time   { return r.fields.CreatedAt }

// Fields は申請内容の写しを返す。
func (r *Request) Fields() Fields {
	f := r.fields
	f.Attributes = cloneAttributes(f.Attributes)
	return f
}

// DisplayName は宛名を返す。氏名が無ければ DefaultVolunteerName。
func (r *Request) DisplayName() string {
	if name := strings.TrimSpace(r.fields.VolunteerName); name != "" {
		return name
	}
	return DefaultVolunteerName
}

// SetPostTitle は申請時点の投稿タイトルを控える（以降の投稿編集には追従しない）。
func (r *Request) SetPostTitle(title string) {
	r.fields.PostTitle = title
}

// Activate は pending -> active の遷移のみを許可する。
func (r *Request) Activate() error {
	if r.state != StatePending {
		return ErrInvalidStateTransition
	}
	r.state = StateActive
	return nil
}

// BeginCancel は pending / active -> cancelling の遷移を許可する。
func (r *Request) BeginCancel() error {
	switch r.state {
	case StatePending, StateActive, StateCancelling:
		r.state = StateCancelling
		return nil
	default:
		return ErrInvalidStateTransition
	}
}

// Cancel は cancelling -> cancelled の遷移のみを許可する。
func (r *Request) Cancel() error {
	if r.state != StateCancelling {
		return ErrInvalidStateTransition
	}
	r.state = StateCancelled
	return nil
}

// isStored はストアに保存され得る状態かどうかを返す。
func (s State) isStored() bool {
	return s == StatePending || s == StateActive || s == StateCancelling
}

func cloneAttributes(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
