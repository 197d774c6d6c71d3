package post

import (
	"errors"
	"strings"
	"time"
)

// ID は投稿の識別子。採番はストアが行う。
type ID string

var (
	// ErrEmptyTitle は募集タイトルが空の場合に返される。
	ErrEmptyTitle = errors.New("post: title is empty")
	// ErrMissingDeadline は締切が指定されていない場合に返される。
	ErrMissingDeadline = errors.New("post: deadline is missing")
	// ErrInvalidDeadline は締切の書式が解釈できない場合に返される。
	ErrInvalidDeadline = errors.New("post: invalid deadline")
	// ErrNegativeCapacity は募集人数に負の値が指定された場合に返される。
	ErrNegativeCapacity = errors.New("post: volunteers needed must not be negative")
	// ErrEmptyID は復元時に ID が空だった場合に返される。
	ErrEmptyID = errors.New("post: id is empty")
)

// ストア上のフィールド名。旧サーバーの MongoDB ドキュメントと揃えている。
const (
	FieldTitle            = "postTitle"
	FieldDeadline         = "deadline"
	FieldOrganizerEmail   = "organizerEmail"
	FieldOrganizerName    = "organizerName"
	FieldVolunteersNeeded = "volunteersNeeded"
	FieldDescription      = "description"
	FieldCategory         = "category"
	FieldLocation         = "location"
	FieldThumbnail        = "thumbnail"
	FieldReservedBy       = "reservedBy"
)

// fieldNames は追加項目として保存させないキー。
var fieldNames = map[string]struct{}{
	"_id":                 {},
	"createdAt":           {},
	"updatedAt":           {},
	"attributes":          {},
	FieldTitle:            {},
	FieldDeadline:         {},
	FieldOrganizerEmail:   {},
	FieldOrganizerName:    {},
	FieldVolunteersNeeded: {},
	FieldDescription:      {},
	FieldCategory:         {},
	FieldLocation:         {},
	FieldThumbnail:        {},
	FieldReservedBy:       {},
}

const dateLayout = "2006-01-02"

// Fields は投稿を組み立てる際の入力値。
type Fields struct {
	Title            string
	Deadline         time.Time
	OrganizerEmail   string
	OrganizerName    string
	VolunteersNeeded int
	Description      string
	Category         string
	Location         string
	Thumbnail        string
	// Attributes は主催者が付けた任意の追加項目。
	Attributes map[string]any
}

// Post はボランティア募集そのもの。
type Post struct {
	id     ID
	fields Fields
}

// New は新規投稿を検証して生成する。ID はストア保存時に決まる。
func New(f Fields) (*Post, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	f.Attributes = cleanAttributes(f.Attributes)
	return &Post{fields: f}, nil
}

// Restore はストアから読み出した値で投稿を復元する。
// 募集人数は予約で負になり得るため、ここでは符号を検査しない。
func Restore(id ID, f Fields) (*Post, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	f.Attributes = cleanAttributes(f.Attributes)
	return &Post{id: id, fields: f}, nil
}

func validate(f Fields) error {
	if strings.TrimSpace(f.Title) == "" {
		return ErrEmptyTitle
	}
	if f.Deadline.IsZero() {
		return ErrMissingDeadline
	}
	if f.VolunteersNeeded < 0 {
		return ErrNegativeCapacity
	}
	return nil
}

func (p *Post) ID() ID                 { return p.id }
func (p *Post) Title() string          { return p.fields.Title }
func (p *Post) Deadline() time.Time    { return p.fields.Deadline }
func (p *Post) OrganizerEmail() string { return p.fields.OrganizerEmail }
func (p *Post) VolunteersNeeded() int  { return p.fields.VolunteersNeeded }

// Fields は投稿内容の写しを返す。
func (p *Post) Fields() Fields {
	f := p.fields
	f.Attributes = cleanAttributes(f.Attributes)
	return f
}

// IsFieldName は既知の項目名かどうかを返す。
func IsFieldName(key string) bool {
	_, ok := fieldNames[key]
	return ok
}

// IsAttributeKey は追加項目のキーとして保存できるかどうかを返す。
// "$" で始まるキーと "." を含むキーは使えない。
func IsAttributeKey(key string) bool {
	if key == "" || IsFieldName(key) {
		return false
	}
	return !strings.HasPrefix(key, "$") && !strings.Contains(key, ".")
}

func cleanAttributes(src map[string]any) map[string]any {
	var dst map[string]any
	for k, v := range src {
		if !IsAttributeKey(k) {
			continue
		}
		if dst == nil {
			dst = make(map[string]any, len(src))
		}
		dst[k] = v
	}
	return dst
}

// IsOversubscribed は予約が募集人数を超えている状態かどうかを返す。
func (p *Post) IsOversubscribed() bool {
	return p.fields.VolunteersNeeded < 0
}

// MatchesTitle は大文字小文字を無視した部分一致で検索語を判定する。空の検索語は常に一致する。
func (p *Post) MatchesTitle(query string) bool {
	return TitleMatches(p.fields.Title, query)
}

// TitleMatches はタイトル検索の判定本体。ストア側のフィルタからも使う。
func TitleMatches(title, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(query))
}

// ParseDeadline は RFC3339 もしくは YYYY-MM-DD 形式の締切を解釈する。
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDeadline
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDeadline
}

// FormatDeadline は日付のみの締切を YYYY-MM-DD、それ以外を RFC3339 で表す。
func FormatDeadline(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}
