package main

import (
	"context"
	"net/http"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/adapter/http/handler"
	"github.com/souravMitra02/volunteer-project-server/internal/app"

	"go.uber.org/zap"
)

// main.go で使用する依存の差し替えポイントを集約したファイル

type containerFactory func(ctx context.Context, log *zap.Logger) (*app.Container, error)

type serverFactory func(addr string, h http.Handler) httpServer

// httpServer は *http.Server のうち起動と停止だけを使う。
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type containerCloser func(container *app.Container) error

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

var (
	newContainer containerFactory = app.NewContainer
	newServer    serverFactory    = func(addr string, h http.Handler) httpServer {
		return &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: readHeaderTimeout}
	}
	newHandler = func(log *zap.Logger, c *app.Container) http.Handler {
		return handler.NewRouter(log.Named("http"),
			handler.NewPostHandler(log.Named("posts"), c.Catalog),
			handler.NewRequestHandler(log.Named("requests"), c.Lifecycle),
			handler.NewEmailHandler(log.Named("email"), c.Notifier),
		)
	}
	closeContainer containerCloser = func(container *app.Container) error {
		return container.Close()
	}
	runFunc = run
)
