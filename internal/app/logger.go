package app

import (
	"fmt"

	"github.com/souravMitra02/volunteer-project-server/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger は本番なら JSON、それ以外は読みやすいコンソール形式のロガーを作る。
func NewLogger(cfg *config.ServerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL=%q", config.ErrInvalidValue, cfg.LogLevel)
	}

	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
