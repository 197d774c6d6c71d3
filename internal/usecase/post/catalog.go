package post

import (
	"context"
	"errors"
	"strings"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"go.uber.org/zap"
)

// UpcomingLimit はトップページに出す締切の近い募集の件数。
const UpcomingLimit = 6

// ErrNilInput はユースケースに nil 入力が渡された際に返される。
var ErrNilInput = errors.New("post_catalog: input is nil")

// 募集投稿作成の入力値。締切は RFC3339 か YYYY-MM-DD。
type CreateInput struct {
	Title            string
	Deadline         string
	OrganizerEmail   string
	OrganizerName    string
	VolunteersNeeded int
	Description      string
	Category         string
	Location         string
	Thumbnail        string
	Attributes       map[string]any
}

/**
 * 募集投稿の参照・編集のユースケース
 * posts: 投稿リポジトリ
 */
type Catalog struct {
	log   *zap.Logger
	posts repository.PostRepository
}

func NewCatalog(log *zap.Logger, posts repository.PostRepository) *Catalog {
	return &Catalog{log: log, posts: posts}
}

// ListUpcoming は締切の早い順に UpcomingLimit 件を返す。
func (u *Catalog) ListUpcoming(ctx context.Context) ([]*post.Post, error) {
	return u.posts.ListByDeadline(ctx, UpcomingLimit)
}

// Search はタイトルの部分一致で検索する。空文字なら全件。
func (u *Catalog) Search(ctx context.Context, query string) ([]*post.Post, error) {
	return u.posts.SearchByTitle(ctx, strings.TrimSpace(query))
}

func (u *Catalog) ListByOrganizer(ctx context.Context, email string) ([]*post.Post, error) {
	return u.posts.ListByOrganizer(ctx, email)
}

/**
 * 入力を検証して投稿を保存する。
 */
func (u *Catalog) Create(ctx context.Context, in *CreateInput) (*repository.InsertResult, error) {
	if in == nil {
		return nil, ErrNilInput
	}
	deadline, err := post.ParseDeadline(in.Deadline)
	if err != nil {
		return nil, err
	}
	p, err := post.New(post.Fields{
		Title:            strings.TrimSpace(in.Title),
		Deadline:         deadline,
		OrganizerEmail:   in.OrganizerEmail,
		OrganizerName:    in.OrganizerName,
		VolunteersNeeded: in.VolunteersNeeded,
		Description:      in.Description,
		Category:         in.Category,
		Location:         in.Location,
		Thumbnail:        in.Thumbnail,
		Attributes:       in.Attributes,
	})
	if err != nil {
		return nil, err
	}

	res, err := u.posts.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	u.log.Info("volunteer post created", zap.String("post_id", res.InsertedID), zap.String("title", p.Title()))
	return res, nil
}

/**
 * ID で 1 件取得する。存在しなければ (nil, nil) を返す。
 */
func (u *Catalog) Get(ctx context.Context, id string) (*post.Post, error) {
	p, err := u.posts.Get(ctx, post.ID(id))
	if errors.Is(err, repository.ErrPostNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update は指定された項目だけを上書きする。
func (u *Catalog) Update(ctx context.Context, id string, patch post.Patch) (*repository.UpdateResult, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return u.posts.Update(ctx, post.ID(id), patch)
}

// Delete は投稿を削除する。その投稿への申請は残る。
func (u *Catalog) Delete(ctx context.Context, id string) (*repository.DeleteResult, error) {
	res, err := u.posts.Delete(ctx, post.ID(id))
	if err != nil {
		return nil, err
	}
	if res.Deleted > 0 {
		u.log.Info("volunteer post deleted", zap.String("post_id", id))
	}
	return res, nil
}
