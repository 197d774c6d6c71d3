package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"github.com/zeebo/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	postsCollection    = "volunteerPosts"
	requestsCollection = "volunteerRequests"
)

// Error は MongoDB ストア由来のエラー分類。
var Error = errs.Class("mongo store")

var errMissingClient = errors.New("mongorepository: mongo client is missing")

// postDocument は旧サーバー同様、追加項目をトップレベルに並べて保存する。
type postDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Title            string             `bson:"postTitle"`
	Deadline         deadlineValue      `bson:"deadline"`
	OrganizerEmail   string             `bson:"organizerEmail"`
	OrganizerName    string             `bson:"organizerName,omitempty"`
	VolunteersNeeded counterValue       `bson:"volunteersNeeded"`
	Description      string             `bson:"description,omitempty"`
	Category         string             `bson:"category,omitempty"`
	Location         string             `bson:"location,omitempty"`
	Thumbnail        string             `bson:"thumbnail,omitempty"`
	ReservedBy       []string           `bson:"reservedBy"`
	Extra            map[string]any     `bson:",inline"`
}

// requestDocument は旧サーバー同様、任意の追加項目をトップレベルに並べて保存する。
type requestDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	PostID         string             `bson:"postId"`
	VolunteerEmail string             `bson:"volunteerEmail"`
	VolunteerName  string             `bson:"volunteerName,omitempty"`
	PostTitle      string             `bson:"postTitle,omitempty"`
	State          string             `bson:"state"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
	Extra          map[string]any     `bson:",inline"`
}

// Store は MongoDB を使った投稿・申請ストア。
type Store struct {
	client       *mongo.Client
	posts        *mongo.Collection
	requests     *mongo.Collection
	transactions bool
	now          func() time.Time
}

/**
 * 接続済みクライアントとデータベース名からストアを作る。
 * transactions が偽ならレプリカセット無しの単体サーバー向けに逐次実行する。
 */
func NewStore(client *mongo.Client, database string, transactions bool) (*Store, error) {
	if client == nil {
		return nil, errMissingClient
	}
	db := client.Database(database)
	return &Store{
		client:       client,
		posts:        db.Collection(postsCollection),
		requests:     db.Collection(requestsCollection),
		transactions: transactions,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close はクライアントを所有しないため何もしない。
func (s *Store) Close() error {
	return nil
}

// Atomic はマルチドキュメントトランザクションを使う設定かどうか。
func (s *Store) Atomic() bool {
	return s.transactions
}

/**
 * トランザクション有効時はセッション内で fn を実行し、一時的なエラーはドライバが再試行する。
 * 無効時は各書き込みが個別に確定する。
 */
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx := &mongoTx{store: s}
	if !s.transactions {
		return fn(ctx, tx)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return Error.New("start session: %v", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, tx)
	})
	return err
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrInvalidID
	}
	return oid, nil
}

func newPostDocument(f post.Fields) postDocument {
	return postDocument{
		Title:            f.Title,
		Deadline:         deadlineValue(f.Deadline.UTC()),
		OrganizerEmail:   f.OrganizerEmail,
		OrganizerName:    f.OrganizerName,
		VolunteersNeeded: counterValue(f.VolunteersNeeded),
		Description:      f.Description,
		Category:         f.Category,
		Location:         f.Location,
		Thumbnail:        f.Thumbnail,
		ReservedBy:       []string{},
		Extra:            f.Attributes,
	}
}

func (d postDocument) restore() (*post.Post, error) {
	p, err := post.Restore(post.ID(d.ID.Hex()), post.Fields{
		Title:            d.Title,
		Deadline:         d.Deadline.Time(),
		OrganizerEmail:   d.OrganizerEmail,
		OrganizerName:    d.OrganizerName,
		VolunteersNeeded: int(d.VolunteersNeeded),
		Description:      d.Description,
		Category:         d.Category,
		Location:         d.Location,
		Thumbnail:        d.Thumbnail,
		Attributes:       d.Extra,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return p, nil
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
		CreatedAt:      created.UTC(),
		UpdatedAt:      now,
		Extra:          f.Attributes,
	}
}

func (d requestDocument) restore() (*request.Request, error) {
	r, err := request.Restore(request.ID(d.ID.Hex()), request.Fields{
		PostID:         post.ID(d.PostID),
		VolunteerEmail: d.VolunteerEmail,
		VolunteerName:  d.VolunteerName,
		PostTitle:      d.PostTitle,
		Attributes:     d.Extra,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, request.State(d.State))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return r, nil
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*mongoTx)(nil)
)
