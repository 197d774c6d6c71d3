package firestore

import (
	"errors"
	"strings"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"cloud.google.com/go/firestore"
	"github.com/zeebo/errs"
)

const (
	// 旧サーバーの MongoDB コレクション名をそのまま使う
	postsCollection    = "volunteerPosts"
	requestsCollection = "volunteerRequests"

	txMaxAttempts = 5
	maxIDBytes    = 1500
)

// Error は Firestore ストア由来のエラー分類。
var Error = errs.Class("firestore store")

// errMissingClient は Firestore クライアント未設定時の初期化エラー。
var errMissingClient = errors.New("firestorerepository: firestore client is missing")

// postDocument は volunteerPosts ドキュメントの構造。
type postDocument struct {
	Title            string    `firestore:"postTitle"`
	Deadline         time.Time `firestore:"deadline"`
	OrganizerEmail   string    `firestore:"organizerEmail"`
	OrganizerName    string    `firestore:"organizerName,omitempty"`
	VolunteersNeeded int64     `firestore:"volunteersNeeded"`
	Description      string    `firestore:"description,omitempty"`
	Category         string    `firestore:"category,omitempty"`
	Location         string    `firestore:"location,omitempty"`
	Thumbnail        string    `firestore:"thumbnail,omitempty"`
	ReservedBy       []string  `firestore:"reservedBy"`
	CreatedAt        time.Time `firestore:"createdAt,serverTimestamp"`
	// Attributes は主催者が付けた追加項目。
	Attributes map[string]any `firestore:"attributes,omitempty"`
}

// requestDocument は volunteerRequests ドキュメントの構造。
type requestDocument struct {
	PostID         string         `firestore:"postId"`
	VolunteerEmail string         `firestore:"volunteerEmail"`
	VolunteerName  string         `firestore:"volunteerName,omitempty"`
	PostTitle      string         `firestore:"postTitle,omitempty"`
	State          string         `firestore:"state"`
	Attributes     map[string]any `firestore:"attributes,omitempty"`
	CreatedAt      time.Time      `firestore:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt"`
}

// Store は Firestore を使った投稿・申請ストア。
type Store struct {
	client   *firestore.Client
	posts    string
	requests string
	now      func() time.Time
}

/**
 * Firestore クライアントを受け取ってストアを組み立てる。
 * クライアントの解放は呼び出し側が持つ。
 */
func NewStore(client *firestore.Client) (*Store, error) {
	if client == nil {
		return nil, errMissingClient
	}
	return &Store{
		client:   client,
		posts:    postsCollection,
		requests: requestsCollection,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close はクライアントを所有しないため何もしない。
func (s *Store) Close() error {
	return nil
}

// Atomic は Firestore トランザクションが複数ドキュメントをまとめて確定できるため真。
func (s *Store) Atomic() bool {
	return true
}

func (s *Store) postRef(id post.ID) *firestore.DocumentRef {
	return s.client.Collection(s.posts).Doc(string(id))
}

func (s *Store) requestRef(id request.ID) *firestore.DocumentRef {
	return s.client.Collection(s.requests).Doc(string(id))
}

// validateID は Firestore のドキュメント ID として使えない文字列を弾く。
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || len(id) > maxIDBytes || strings.Contains(id, "/") {
		return repository.ErrInvalidID
	}
	if strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__") {
		return repository.ErrInvalidID
	}
	return nil
}

func newPostDocument(f post.Fields) postDocument {
	return postDocument{
		Title:            f.Title,
		Deadline:         f.Deadline.UTC(),
		OrganizerEmail:   f.OrganizerEmail,
		OrganizerName:    f.OrganizerName,
		VolunteersNeeded: int64(f.VolunteersNeeded),
		Description:      f.Description,
		Category:         f.Category,
		Location:         f.Location,
		Thumbnail:        f.Thumbnail,
		ReservedBy:       []string{},
		Attributes:       f.Attributes,
	}
}

func (d postDocument) fields() post.Fields {
	return post.Fields{
		Title:            d.Title,
		Deadline:         d.Deadline.UTC(),
		OrganizerEmail:   d.OrganizerEmail,
		OrganizerName:    d.OrganizerName,
		VolunteersNeeded: int(d.VolunteersNeeded),
		Description:      d.Description,
		Category:         d.Category,
		Location:         d.Location,
		Thumbnail:        d.Thumbnail,
		Attributes:       d.Attributes,
	}
}

func decodePost(doc *firestore.DocumentSnapshot) (*post.Post, postDocument, error) {
	var payload postDocument
	if err := doc.DataTo(&payload); err != nil {
		return nil, payload, Error.New("decode post document %s: %v", doc.Ref.ID, err)
	}
	p, err := post.Restore(post.ID(doc.Ref.ID), payload.fields())
	if err != nil {
		return nil, payload, Error.Wrap(err)
	}
	return p, payload, nil
}

func newRequestDocument(r *request.Request, now time.Time) requestDocument {
	f := r.Fields()
	created := f.CreatedAt
	if created.IsZero() {
		created = now
	}
	return requestDocument{
		PostID:         string(f.PostID),
		VolunteerEmail: f.VolunteerEmail,
		VolunteerName:  f.VolunteerName,
		PostTitle:      f.PostTitle,
		State:          string(r.State()),
		Attributes:     f.Attributes,
		CreatedAt:      created.UTC(),
		UpdatedAt:      now,
	}
}

func (d requestDocument) restore(id string) (*request.Request, error) {
	r, err := request.Restore(request.ID(id), request.Fields{
		PostID:         post.ID(d.PostID),
		VolunteerEmail: d.VolunteerEmail,
		VolunteerName:  d.VolunteerName,
		PostTitle:      d.PostTitle,
		Attributes:     d.Attributes,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, request.State(d.State))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return r, nil
}

func decodeRequest(doc *firestore.DocumentSnapshot) (*request.Request, requestDocument, error) {
	var payload requestDocument
	if err := doc.DataTo(&payload); err != nil {
		return nil, payload, Error.New("decode request document %s: %v", doc.Ref.ID, err)
	}
	r, err := payload.restore(doc.Ref.ID)
	return r, payload, err
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*firestoreTx)(nil)
)
