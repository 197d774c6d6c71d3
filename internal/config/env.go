package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	loadDotEnvOnce sync.Once
	loadDotEnvErr  error
)

// ErrInvalidValue は環境変数の値が解釈できない場合に返される。
var ErrInvalidValue = errors.New("config: invalid value")

// LoadDotEnv は .env が存在すれば 1 度だけ読み込む。既に設定済みの環境変数は上書きしない。
func LoadDotEnv() error {
	loadDotEnvOnce.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		if err := godotenv.Load(); err != nil {
			loadDotEnvErr = fmt.Errorf("dotenv: failed to load .env: %w", err)
		}
	})
	return loadDotEnvErr
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func stringOr(key, fallback string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) (int, error) {
	v := lookup(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v)
	}
	return n, nil
}

func boolOr(key string, fallback bool) (bool, error) {
	v := lookup(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v)
	}
	return b, nil
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := lookup(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v)
	}
	return d, nil
}
