package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/souravMitra02/volunteer-project-server/internal/app"
	"github.com/souravMitra02/volunteer-project-server/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("%v", err)
	}
	serverCfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load server config: %v", err)
	}
	logger, err := app.NewLogger(serverCfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if serverCfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runFunc(ctx, logger, serverCfg.Addr()); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

/**
 * 依存を組み立ててから待ち受けを始め、ctx の終了で順に止める。
 * ストアに接続できなければ待ち受けを始めずにエラーを返す。
 */
func run(ctx context.Context, logger *zap.Logger, addr string) error {
	container, err := newContainer(ctx, logger)
	if err != nil {
		return fmt.Errorf("依存初期化失敗: %w", err)
	}
	defer func() {
		if cerr := closeContainer(container); cerr != nil {
			logger.Warn("container close failed", zap.Error(cerr))
		}
	}()

	srv := newServer(addr, newHandler(logger, container))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("volunteer hub api listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバー起動失敗: %w", err)
		}
		return nil
	})

	if container.Dispatcher != nil {
		// 停止はキューの Close で伝える。溜まっている分は送り切ってから戻る
		g.Go(func() error {
			return container.Dispatcher.Run(context.WithoutCancel(gctx))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", zap.Error(err))
		}
		return container.Queue.Close()
	})

	return g.Wait()
}
