package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Policy は残数 0 以下での予約の扱い。
type Policy string

const (
	// PolicyStrict は残数が無ければ予約を拒否する。
	PolicyStrict Policy = "strict"
	// PolicyOversubscribe は残数を負まで下げて超過を許す。
	PolicyOversubscribe Policy = "oversubscribe"
)

var (
	// ErrCapacityExhausted は strict ポリシーで残数が無かった場合に返される。
	ErrCapacityExhausted = errors.New("ledger: capacity exhausted")
	// ErrUnknownPolicy は未知のポリシー名を指定された場合に返される。
	ErrUnknownPolicy = errors.New("ledger: unknown capacity policy")
)

var adjustments = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "volunteerhub_capacity_adjustments_total",
	Help: "Capacity ledger operations by direction and outcome.",
}, []string{"direction", "outcome"})

const (
	directionReserve = "reserve"
	directionRelease = "release"

	outcomeApplied   = "applied"
	outcomeNoop      = "noop"
	outcomeAbsent    = "absent"
	outcomeExhausted = "exhausted"
	outcomeError     = "error"
)

// ParsePolicy は設定値をポリシーへ変換する。空なら strict。
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyOversubscribe:
		return PolicyOversubscribe, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

/**
 * 募集人数の増減を担う台帳
 * 予約と返却は申請 ID 単位で冪等になるよう、ストアの条件付き更新に委ねる。
 */
type Ledger struct {
	log    *zap.Logger
	policy Policy
}

func New(log *zap.Logger, policy Policy) *Ledger {
	if policy == "" {
		policy = PolicyStrict
	}
	return &Ledger{log: log, policy: policy}
}

// Policy は設定中のポリシーを返す。
func (l *Ledger) Policy() Policy {
	return l.policy
}

/**
 * 申請 1 件分の席を確保する（募集人数 -1）。
 * 投稿が無ければ Matched 0 のまま成功、同じ申請での再予約は変化なしで成功する。
 */
func (l *Ledger) Reserve(ctx context.Context, tx repository.Tx, postID post.ID, requestID request.ID) (*repository.UpdateResult, error) {
	res, err := tx.AdjustCapacity(ctx, repository.CapacityAdjustment{
		PostID:          postID,
		RequestID:       requestID,
		Delta:           -1,
		RequirePositive: l.policy == PolicyStrict,
	})
	if errors.Is(err, repository.ErrCapacityGuard) {
		adjustments.WithLabelValues(directionReserve, outcomeExhausted).Inc()
		l.log.Info("capacity exhausted", zap.String("post_id", string(postID)), zap.String("request_id", string(requestID)))
		return nil, ErrCapacityExhausted
	}
	if err != nil {
		adjustments.WithLabelValues(directionReserve, outcomeError).Inc()
		return nil, err
	}
	adjustments.WithLabelValues(directionReserve, outcomeOf(res)).Inc()
	return res, nil
}

/**
 * 申請 1 件分の席を返す（募集人数 +1）。ポリシーに関係なく常に許可する。
 */
func (l *Ledger) Release(ctx context.Context, tx repository.Tx, postID post.ID, requestID request.ID) (*repository.UpdateResult, error) {
	res, err := tx.AdjustCapacity(ctx, repository.CapacityAdjustment{
		PostID:    postID,
		RequestID: requestID,
		Delta:     1,
	})
	if err != nil {
		adjustments.WithLabelValues(directionRelease, outcomeError).Inc()
		return nil, err
	}
	outcome := outcomeOf(res)
	if outcome == outcomeAbsent {
		// 投稿削除後の申請取り消しは想定内
		l.log.Debug("release on missing post", zap.String("post_id", string(postID)))
	}
	adjustments.WithLabelValues(directionRelease, outcome).Inc()
	return res, nil
}

func outcomeOf(res *repository.UpdateResult) string {
	switch {
	case res.Matched == 0:
		return outcomeAbsent
	case res.Modified == 0:
		return outcomeNoop
	default:
		return outcomeApplied
	}
}
