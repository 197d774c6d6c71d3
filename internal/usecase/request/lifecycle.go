package request

import (
	"context"
	"errors"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/post"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/request"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/ledger"

	"go.uber.org/zap"
)

// ErrNilInput はユースケースに nil 入力が渡された際に返される。
var ErrNilInput = errors.New("request_lifecycle: input is nil")

const (
	defaultEnqueueTimeout = 5 * time.Second
	compensateTimeout     = 10 * time.Second
)

// 参加申請作成の入力値
type CreateInput struct {
	PostID         string
	VolunteerEmail string
	VolunteerName  string
	PostTitle      string
	Attributes     map[string]any
}

// 参加申請作成の結果。Capacity は予約時の更新結果。
type CreateOutput struct {
	RequestID request.ID
	Insert    repository.InsertResult
	Capacity  repository.UpdateResult
}

// 参加申請取り消しの結果。申請が無かった場合 Capacity は nil。
type CancelOutput struct {
	Delete   repository.DeleteResult
	Capacity *repository.UpdateResult
}

/**
 * 参加申請の作成・取り消しのユースケース
 * tx: 投稿と申請をまたぐ書き込み境界
 * requests: 申請の参照系
 * ledger: 募集人数の台帳
 * notifications: お礼メールのキュー（nil なら送らない）
 */
type Lifecycle struct {
	log            *zap.Logger
	tx             repository.Transactor
	requests       repository.RequestRepository
	ledger         *ledger.Ledger
	notifications  queue.NotificationQueue
	enqueueTimeout time.Duration
}

func NewLifecycle(
	log *zap.Logger,
	tx repository.Transactor,
	requests repository.RequestRepository,
	l *ledger.Ledger,
	notifications queue.NotificationQueue,
) *Lifecycle {
	return &Lifecycle{
		log:            log,
		tx:             tx,
		requests:       requests,
		ledger:         l,
		notifications:  notifications,
		enqueueTimeout: defaultEnqueueTimeout,
	}
}

/**
 * 申請を pending で書き込み、席を確保してから active にする。
 * 確定後にお礼メールのジョブを積むが、その失敗は呼び出し側へ返さない。
 */
func (u *Lifecycle) Create(ctx context.Context, in *CreateInput) (*CreateOutput, error) {
	if in == nil {
		return nil, ErrNilInput
	}
	r, err := request.New(request.Fields{
		PostID:         post.ID(in.PostID),
		VolunteerEmail: in.VolunteerEmail,
		VolunteerName:  in.VolunteerName,
		PostTitle:      in.PostTitle,
		Attributes:     in.Attributes,
	})
	if err != nil {
		return nil, err
	}

	var out CreateOutput
	err = u.tx.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		out = CreateOutput{}
		p, err := tx.GetPost(ctx, r.PostID())
		if err != nil {
			return err
		}
		if r.PostTitle() == "" {
			r.SetPostTitle(p.Title())
		}

		ins, err := tx.InsertRequest(ctx, r)
		if err != nil {
			return err
		}
		out.RequestID = request.ID(ins.InsertedID)
		out.Insert = *ins

		capRes, err := u.ledger.Reserve(ctx, tx, r.PostID(), out.RequestID)
		if err != nil {
			return err
		}
		out.Capacity = *capRes

		_, err = tx.SetRequestState(ctx, out.RequestID, request.StateActive)
		return err
	})
	if err != nil {
		if out.RequestID != "" && !u.tx.Atomic() {
			u.compensate(ctx, r.PostID(), out.RequestID)
		}
		return nil, err
	}

	u.log.Info("volunteer request created",
		zap.String("request_id", string(out.RequestID)),
		zap.String("post_id", string(r.PostID())),
		zap.Int64("capacity_modified", out.Capacity.Modified),
	)
	u.notify(ctx, r)
	return &out, nil
}

/**
 * 申請を cancelling にしてから席を返し、ドキュメントを削除する。
 * 申請が無ければ何もせず Deleted 0 を返す。
 */
func (u *Lifecycle) Cancel(ctx context.Context, id string) (*CancelOutput, error) {
	var out CancelOutput
	err := u.tx.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		out = CancelOutput{}
		r, err := tx.GetRequest(ctx, request.ID(id))
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.BeginCancel(); err != nil {
			return err
		}
		if _, err := tx.SetRequestState(ctx, r.ID(), r.State()); err != nil {
			return err
		}

		capRes, err := u.ledger.Release(ctx, tx, r.PostID(), r.ID())
		if err != nil {
			return err
		}
		// 席を返し終えたら cancelled。以降はドキュメントごと消す
		if err := r.Cancel(); err != nil {
			return err
		}
		del, err := tx.DeleteRequest(ctx, r.ID())
		if err != nil {
			return err
		}
		out.Delete = *del
		out.Capacity = capRes
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Delete.Deleted > 0 {
		u.log.Info("volunteer request cancelled", zap.String("request_id", id))
	}
	return &out, nil
}

// ListByVolunteer は申請者メールアドレスに一致する申請を返す。
func (u *Lifecycle) ListByVolunteer(ctx context.Context, email string) ([]*request.Request, error) {
	return u.requests.ListByVolunteer(ctx, email)
}

/**
 * 原子性の無いストアで作成が途中失敗したとき、席を返して申請を消す。
 * 返却は申請 ID 単位で冪等なので、予約前に失敗していても問題ない。
 * ここでも失敗した分は突き合わせ処理が拾う。
 */
func (u *Lifecycle) compensate(ctx context.Context, postID post.ID, id request.ID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	err := u.tx.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.ledger.Release(ctx, tx, postID, id); err != nil {
			return err
		}
		_, err := tx.DeleteRequest(ctx, id)
		return err
	})
	if err != nil {
		u.log.Error("compensation failed; left for reconciliation", zap.String("request_id", string(id)), zap.Error(err))
		return
	}
	u.log.Warn("request creation rolled back", zap.String("request_id", string(id)))
}

// notify はお礼メールのジョブを積む。呼び出し元の取り消しには影響されない。
func (u *Lifecycle) notify(ctx context.Context, r *request.Request) {
	if u.notifications == nil || r.VolunteerEmail() == "" {
		return
	}
	job, err := notification.NewWelcome(r.VolunteerEmail(), r.VolunteerName(), r.PostTitle())
	if err != nil {
		u.log.Warn("skip welcome notification", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.enqueueTimeout)
	defer cancel()
	if err := u.notifications.Enqueue(ctx, job); err != nil {
		u.log.Warn("failed to enqueue welcome notification",
			zap.String("job_id", job.ID),
			zap.String("to", job.To),
			zap.Error(err),
		)
	}
}
