package app

import (
	"context"
	"fmt"

	"github.com/souravMitra02/volunteer-project-server/internal/config"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/notify"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/reconcile"

	"go.uber.org/zap"
)

// ワーカーで使う依存をまとめた器。
type WorkerContainer struct {
	Log   *zap.Logger
	Store repository.Store
	// Dispatcher はキューがメモリの場合は別プロセスから届かないため nil。
	Dispatcher *notify.Dispatcher
	Reconciler *reconcile.Reconciler
	Reconcile  *config.ReconcileConfig

	core *core
}

/**
 * ワーカー稼働に必要なストア、キュー、突き合わせ処理を整えて返す。
 */
func NewWorkerContainer(ctx context.Context, log *zap.Logger) (*WorkerContainer, error) {
	reconcileCfg, err := config.LoadReconcileConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load reconcile config: %w", err)
	}
	c, err := newCore(ctx, log, true)
	if err != nil {
		return nil, err
	}

	container := &WorkerContainer{
		Log:        log,
		Store:      c.store,
		Reconciler: reconcile.New(log.Named("reconcile"), c.store, c.store, c.ledger),
		Reconcile:  reconcileCfg,
		core:       c,
	}
	if c.queueCfg.Backend != config.QueueMemory {
		container.Dispatcher = notify.NewDispatcher(log.Named("dispatcher"), c.queue, c.notifier, c.queueCfg.MaxAttempts)
	} else {
		log.Warn("memory notification queue is process local; worker only reconciles")
	}
	return container, nil
}

/**
 * 生成時に開いたリソースを順に閉じる。
 */
func (c *WorkerContainer) Close() error {
	if c == nil || c.core == nil {
		return nil
	}
	return c.core.close(c.Log)
}

// ReconcileContainer は単発の突き合わせ処理に必要な依存だけを持つ。
type ReconcileContainer struct {
	Reconciler *reconcile.Reconciler
	Config     *config.ReconcileConfig

	log  *zap.Logger
	core *core
}

// NewReconcileContainer はキューやメーラーを開かずにストアと台帳だけを用意する。
func NewReconcileContainer(ctx context.Context, log *zap.Logger) (*ReconcileContainer, error) {
	cfg, err := config.LoadReconcileConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load reconcile config: %w", err)
	}
	c, err := newCore(ctx, log, false)
	if err != nil {
		return nil, err
	}
	return &ReconcileContainer{
		Reconciler: reconcile.New(log.Named("reconcile"), c.store, c.store, c.ledger),
		Config:     cfg,
		log:        log,
		core:       c,
	}, nil
}

func (c *ReconcileContainer) Close() error {
	if c == nil || c.core == nil {
		return nil
	}
	return c.core.close(c.log)
}
