package repository

import (
	"context"
	"errors"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
)

var (
	ErrPostNotFound = errors.New("repository: 投稿が見つかりません")
	// ErrInvalidID はストアが扱えない形式の ID を受け取った際に返される。
	ErrInvalidID = errors.New("repository: ID の形式が不正です")
)

// InsertResult は 1 件追加の結果。
type InsertResult struct {
	InsertedID string
}

// UpdateResult は 1 件更新の結果。Matched が 0 なら対象が存在しなかった。
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// DeleteResult は 1 件削除の結果。
type DeleteResult struct {
	Deleted int64
}

/**
 * 募集投稿リポジトリの契約
 * Create: 新規保存し、採番した ID を返す
 * Get: ID 取得、未存在時は ErrPostNotFound
 * ListByDeadline: 締切の早い順に最大 limit 件
 * SearchByTitle: タイトルの部分一致（大文字小文字無視、空なら全件）
 * ListByOrganizer: 主催者メールアドレスの完全一致
 * Update: 指定項目のみ上書き、未存在時は Matched 0
 * Delete: 削除、未存在時は Deleted 0（申請側へは波及しない）
 */
type PostRepository interface {
	Create(ctx context.Context, p *post.Post) (*InsertResult, error)
	Get(ctx context.Context, id post.ID) (*post.Post, error)
	ListByDeadline(ctx context.Context, limit int) ([]*post.Post, error)
	SearchByTitle(ctx context.Context, query string) ([]*post.Post, error)
	ListByOrganizer(ctx context.Context, email string) ([]*post.Post, error)
	Update(ctx context.Context, id post.ID, patch post.Patch) (*UpdateResult, error)
	Delete(ctx context.Context, id post.ID) (*DeleteResult, error)
}
