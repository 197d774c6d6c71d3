package repository

import (
	"context"
	"errors"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
)

var ErrRequestNotFound = errors.New("repository: 参加申請が見つかりません")

/**
 * 参加申請の参照系リポジトリ。書き込みは Tx 経由でのみ行う。
 * ListByVolunteer: 申請者メールアドレスの完全一致
 * ListStale: 指定状態のまま before より前から更新されていない申請（突き合わせ用）
 */
type RequestRepository interface {
	ListByVolunteer(ctx context.Context, email string) ([]*request.Request, error)
	ListStale(ctx context.Context, states []request.State, before time.Time) ([]*request.Request, error)
}
