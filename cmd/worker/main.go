package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/app"
	"github.com/souravMitra02/volunteer-project-server/internal/config"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/reconcile"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

/**
 * 起動時にワーカーの依存を整えて停止指示が来るまでループを回す。
 */
func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("%v", err)
	}
	serverCfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := app.NewLogger(serverCfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.NewWorkerContainer(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize worker", zap.Error(err))
	}
	defer func() {
		if cerr := container.Close(); cerr != nil {
			logger.Warn("worker shutdown error", zap.Error(cerr))
		}
	}()

	logger.Info("worker started",
		zap.Bool("dispatch", container.Dispatcher != nil),
		zap.Duration("reconcile_interval", container.Reconcile.Interval),
	)
	if err := runLoops(ctx, container); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
}

// runLoops は通知の配信と定期的な突き合わせを並行に回す。
func runLoops(ctx context.Context, container *app.WorkerContainer) error {
	g, gctx := errgroup.WithContext(ctx)
	if container.Dispatcher != nil {
		g.Go(func() error {
			return container.Dispatcher.Run(gctx)
		})
	}
	if container.Reconcile.Interval > 0 {
		g.Go(func() error {
			reconcileLoop(gctx, container.Log, container.Reconciler, container.Reconcile)
			return nil
		})
	}
	return g.Wait()
}

// reconcileLoop は Interval ごとに突き合わせを流す。失敗しても次の周期で再試行する。
func reconcileLoop(ctx context.Context, logger *zap.Logger, r *reconcile.Reconciler, cfg *config.ReconcileConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.Run(ctx, reconcile.Options{Grace: cfg.Grace}); err != nil {
			logger.Warn("periodic reconcile failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
