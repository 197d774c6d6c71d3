package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/ledger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGrace は途中状態の申請を放置とみなすまでの猶予。
	DefaultGrace = 5 * time.Minute

	defaultConcurrency = 4
)

// Options は 1 回の突き合わせの設定。
type Options struct {
	Grace time.Duration
	// DryRun が真なら対象を数えるだけで書き込まない。
	DryRun      bool
	Concurrency int
}

// Report は 1 回の突き合わせの結果。
type Report struct {
	Scanned    int
	Activated  int
	Released   int
	RolledBack int
	Failed     int
}

func (r Report) String() string {
	return fmt.Sprintf("scanned=%d activated=%d released=%d rolled_back=%d failed=%d",
		r.Scanned, r.Activated, r.Released, r.RolledBack, r.Failed)
}

/**
 * pending / cancelling のまま残った申請を先へ進める突き合わせ処理
 * pending: 席を確保して active にする。席が無い・投稿が無い場合は申請を消す
 * cancelling: 席を返して申請を消す
 * 台帳の操作は申請 ID 単位で冪等なので、何度流しても結果は変わらない。
 */
type Reconciler struct {
	log      *zap.Logger
	tx       repository.Transactor
	requests repository.RequestRepository
	ledger   *ledger.Ledger
	now      func() time.Time
}

func New(log *zap.Logger, tx repository.Transactor, requests repository.RequestRepository, l *ledger.Ledger) *Reconciler {
	return &Reconciler{
		log:      log,
		tx:       tx,
		requests: requests,
		ledger:   l,
		now:      time.Now,
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeActivated
	outcomeReleased
	outcomeRolledBack
)

// Run は対象の申請を並行に処理し、件数をまとめて返す。
// 個々の申請の失敗は Failed に数え、一覧取得の失敗のみエラーとして返す。
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	before := r.now().UTC().Add(-opts.Grace)
	stale, err := r.requests.ListStale(ctx, []request.State{request.StatePending, request.StateCancelling}, before)
	if err != nil {
		return nil, fmt.Errorf("list stale requests: %w", err)
	}

	report := &Report{Scanned: len(stale)}
	if opts.DryRun {
		for _, req := range stale {
			r.log.Info("stale request",
				zap.String("request_id", string(req.ID())),
				zap.String("state", string(req.State())),
				zap.Time("created_at", req.CreatedAt()),
			)
		}
		return report, nil
	}

	var activated, released, rolledBack, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, req := range stale {
		g.Go(func() error {
			res, err := r.settle(gctx, req.ID())
			if err != nil {
				failed.Add(1)
				r.log.Warn("reconcile failed", zap.String("request_id", string(req.ID())), zap.Error(err))
				return nil
			}
			switch res {
			case outcomeActivated:
				activated.Add(1)
			case outcomeReleased:
				released.Add(1)
			case outcomeRolledBack:
				rolledBack.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Activated = int(activated.Load())
	report.Released = int(released.Load())
	report.RolledBack = int(rolledBack.Load())
	report.Failed = int(failed.Load())
	r.log.Info("reconcile finished", zap.Stringer("report", report))
	return report, nil
}

// settle は 1 件の申請をトランザクション内で読み直してから進める。
func (r *Reconciler) settle(ctx context.Context, id request.ID) (outcome, error) {
	var res outcome
	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		res = outcomeSkipped
		req, err := tx.GetRequest(ctx, id)
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		switch req.State() {
		case request.StatePending:
			res, err = r.rollForward(ctx, tx, req)
			return err
		case request.StateCancelling:
			if _, err := r.ledger.Release(ctx, tx, req.PostID(), req.ID()); err != nil {
				return err
			}
			if err := req.Cancel(); err != nil {
				return err
			}
			if _, err := tx.DeleteRequest(ctx, req.ID()); err != nil {
				return err
			}
			res = outcomeReleased
			return nil
		default:
			// 一覧取得後に別の処理が進めた
			return nil
		}
	})
	return res, err
}

func (r *Reconciler) rollForward(ctx context.Context, tx repository.Tx, req *request.Request) (outcome, error) {
	capRes, err := r.ledger.Reserve(ctx, tx, req.PostID(), req.ID())
	if errors.Is(err, ledger.ErrCapacityExhausted) {
		_, err := tx.DeleteRequest(ctx, req.ID())
		return outcomeRolledBack, err
	}
	if err != nil {
		return outcomeSkipped, err
	}
	if capRes.Matched == 0 {
		// 投稿が消えているので申請も残さない
		_, err := tx.DeleteRequest(ctx, req.ID())
		return outcomeRolledBack, err
	}

	if err := req.Activate(); err != nil {
		return outcomeSkipped, err
	}
	if _, err := tx.SetRequestState(ctx, req.ID(), req.State()); err != nil {
		return outcomeSkipped, err
	}
	return outcomeActivated, nil
}
