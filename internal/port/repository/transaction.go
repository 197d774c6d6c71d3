package repository

import (
	"context"
	"errors"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
)

// ErrCapacityGuard は募集人数が 0 以下で予約条件を満たさなかった際に返される。
var ErrCapacityGuard = errors.New("repository: 募集人数の条件を満たしません")

// CapacityAdjustment は投稿の募集人数に対する 1 回分の増減。
// 予約済みの申請 ID を投稿側に記録し、同じ申請での二重適用を防ぐ。
type CapacityAdjustment struct {
	PostID    post.ID
	RequestID request.ID
	// Delta が負なら予約、正なら返却。
	Delta int
	// RequirePositive が真なら、残数が 0 以下のときは予約せず ErrCapacityGuard を返す。
	RequirePositive bool
}

// IsReservation は予約（減算）かどうかを返す。
func (a CapacityAdjustment) IsReservation() bool {
	return a.Delta < 0
}

/**
 * 1 トランザクション内で使える操作
 * AdjustCapacity: 単一ドキュメントへの原子的な増減。投稿が無ければ Matched 0、
 *   予約済み/未予約で変化が無ければ Matched 1, Modified 0
 * InsertRequest: 申請を保存し採番した ID を返す
 * SetRequestState / DeleteRequest: 未存在時は Matched 0 / Deleted 0
 */
type Tx interface {
	GetPost(ctx context.Context, id post.ID) (*post.Post, error)
	AdjustCapacity(ctx context.Context, adj CapacityAdjustment) (*UpdateResult, error)
	GetRequest(ctx context.Context, id request.ID) (*request.Request, error)
	InsertRequest(ctx context.Context, r *request.Request) (*InsertResult, error)
	SetRequestState(ctx context.Context, id request.ID, state request.State) (*UpdateResult, error)
	DeleteRequest(ctx context.Context, id request.ID) (*DeleteResult, error)
}

/**
 * 投稿と申請をまたぐ書き込みの境界
 * RunInTx: fn が nil を返した場合のみ確定する。fn には必ず引数の ctx を使わせる
 * Atomic: 複数ドキュメントの原子性が保証されるか（偽なら途中失敗があり得る）
 */
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Atomic() bool
}

// Store はバックエンドが提供するリポジトリ群をまとめたもの。
type Store interface {
	PostRepository
	RequestRepository
	Transactor
	Close() error
}
