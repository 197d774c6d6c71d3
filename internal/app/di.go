package app

import (
	"context"
	"fmt"

	"github.com/souravMitra02/volunteer-project-server/internal/config"
	"github.com/souravMitra02/volunteer-project-server/internal/domain/notification"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/ledger"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/notify"
	postusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/post"
	requestusecase "github.com/souravMitra02/volunteer-project-server/internal/usecase/request"

	"go.uber.org/zap"
)

// Container は API で使用する依存を保持する。
type Container struct {
	Log       *zap.Logger
	Store     repository.Store
	Queue     queue.NotificationQueue
	Catalog   *postusecase.Catalog
	Lifecycle *requestusecase.Lifecycle
	Notifier  *notify.Service
	// Dispatcher はキューがメモリのときだけ API プロセス内で動かす。それ以外は nil。
	Dispatcher *notify.Dispatcher

	infra *Infra
}

/**
 * ストア、キュー、メーラーを設定から組み立て、ユースケースへ配線する。
 * 途中で失敗した場合はそこまでに開いたリソースを閉じる。
 */
func NewContainer(ctx context.Context, log *zap.Logger) (*Container, error) {
	c, err := newCore(ctx, log, true)
	if err != nil {
		return nil, err
	}

	container := &Container{
		Log:       log,
		Store:     c.store,
		Queue:     c.queue,
		Catalog:   postusecase.NewCatalog(log.Named("catalog"), c.store),
		Lifecycle: requestusecase.NewLifecycle(log.Named("lifecycle"), c.store, c.store, c.ledger, c.queue),
		Notifier:  c.notifier,
		infra:     c.infra,
	}
	if c.queueCfg.Backend == config.QueueMemory {
		container.Dispatcher = notify.NewDispatcher(log.Named("dispatcher"), c.queue, c.notifier, c.queueCfg.MaxAttempts)
	}
	return container, nil
}

/**
 * 生成時に開いたリソースを順に閉じる。
 */
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var retErr error
	if c.Queue != nil {
		retErr = mergeCloseError(c.Log, retErr, "notification queue", c.Queue.Close)
	}
	if c.Store != nil {
		retErr = mergeCloseError(c.Log, retErr, "store", c.Store.Close)
	}
	return mergeCloseError(c.Log, retErr, "infra", c.infra.Close)
}

// core は API とワーカーで共通の依存。
type core struct {
	infra    *Infra
	store    repository.Store
	ledger   *ledger.Ledger
	queueCfg *config.QueueConfig
	queue    queue.NotificationQueue
	notifier *notify.Service
}

func newCore(ctx context.Context, log *zap.Logger, withQueue bool) (_ *core, err error) {
	storeCfg, err := config.LoadStoreConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load store config: %w", err)
	}
	queueCfg := &config.QueueConfig{Backend: config.QueueMemory}
	if withQueue {
		if queueCfg, err = config.LoadQueueConfigFromEnv(); err != nil {
			return nil, fmt.Errorf("load queue config: %w", err)
		}
	}
	capCfg, err := config.LoadCapacityConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load capacity config: %w", err)
	}
	policy, err := ledger.ParsePolicy(capCfg.Policy)
	if err != nil {
		return nil, err
	}

	infra, err := infraFactory(ctx, log.Named("infra"), storeCfg, queueCfg)
	if err != nil {
		return nil, fmt.Errorf("init infra: %w", err)
	}
	c := &core{infra: infra, queueCfg: queueCfg, ledger: ledger.New(log.Named("ledger"), policy)}
	defer func() {
		if err != nil {
			_ = c.close(log)
		}
	}()

	if c.store, err = storeFactory(storeCfg, infra); err != nil {
		return nil, err
	}
	log.Info("store ready", zap.String("backend", string(storeCfg.Backend)), zap.Bool("atomic", c.store.Atomic()))
	normalizeLegacy(ctx, log, c.store)

	if !withQueue {
		return c, nil
	}
	if c.queue, err = queueFactory(queueCfg, infra); err != nil {
		return nil, err
	}

	mailCfg, err := config.LoadMailConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load mail config: %w", err)
	}
	m, err := mailerFactory(log, mailCfg)
	if err != nil {
		return nil, err
	}
	renderer, err := notification.NewRenderer(mailCfg.DashboardURL)
	if err != nil {
		return nil, err
	}
	c.notifier = notify.NewService(log.Named("notify"), renderer, m)
	return c, nil
}

// legacyNormalizer は旧形式のドキュメントを書き換えられるストア。
type legacyNormalizer interface {
	NormalizeLegacyPosts(ctx context.Context) (int64, error)
}

// normalizeLegacy は失敗しても起動を止めず、警告だけ残す。
func normalizeLegacy(ctx context.Context, log *zap.Logger, store repository.Store) {
	n, ok := store.(legacyNormalizer)
	if !ok {
		return
	}
	modified, err := n.NormalizeLegacyPosts(ctx)
	if err != nil {
		log.Warn("legacy post normalization failed", zap.Error(err))
		return
	}
	if modified > 0 {
		log.Info("legacy posts normalized", zap.Int64("modified", modified))
	}
}

func (c *core) close(log *zap.Logger) error {
	var retErr error
	if c.queue != nil {
		retErr = mergeCloseError(log, retErr, "notification queue", c.queue.Close)
	}
	if c.store != nil {
		retErr = mergeCloseError(log, retErr, "store", c.store.Close)
	}
	return mergeCloseError(log, retErr, "infra", c.infra.Close)
}
