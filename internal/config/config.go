package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrFirestoreProjectIDBlank は Firestore を選んだのにプロジェクト ID が無い場合に返される。
var ErrFirestoreProjectIDBlank = errors.New("config: GOOGLE_CLOUD_PROJECT is not set")

// ErrMongoURIBlank は MongoDB を選んだのに接続先が無い場合に返される。
var ErrMongoURIBlank = errors.New("config: MONGO_URI or DB_USER/DB_PASS is not set")

const (
	defaultPort          = "3000"
	defaultMongoDatabase = "volunteerDB"
	defaultMongoHost     = "cluster0.ssk8yog.mongodb.net"
	defaultSMTPHost      = "smtp.gmail.com"
	defaultSMTPPort      = 587
	defaultDashboardURL  = "http://localhost:3000"
	defaultQueueBuffer   = 256
)

// ServerConfig は HTTP サーバーとログの設定。
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// Addr は待ち受けアドレスを返す。
func (c *ServerConfig) Addr() string {
	return ":" + c.Port
}

// IsProduction は本番向けのログ出力にするかどうかを返す。
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func LoadServerConfigFromEnv() (*ServerConfig, error) {
	return &ServerConfig{
		Port:     stringOr("PORT", defaultPort),
		Env:      strings.ToLower(stringOr("APP_ENV", "development")),
		LogLevel: strings.ToLower(stringOr("LOG_LEVEL", "info")),
	}, nil
}

// StoreBackend は投稿と申請を保存する先。
type StoreBackend string

const (
	StoreMemory    StoreBackend = "memory"
	StoreFirestore StoreBackend = "firestore"
	StoreMongo     StoreBackend = "mongo"
)

// StoreConfig はストアの選択と接続設定。
type StoreConfig struct {
	Backend   StoreBackend
	Mongo     *MongoConfig
	Firestore *FirestoreConfig
}

/**
 * STORE_BACKEND を読み、選ばれたバックエンドの設定だけを検証する。
 * 未指定なら MongoDB の資格情報があれば mongo、プロジェクト ID があれば firestore、どちらも無ければ memory。
 */
func LoadStoreConfigFromEnv() (*StoreConfig, error) {
	backend := StoreBackend(strings.ToLower(lookup("STORE_BACKEND")))
	if backend == "" {
		switch {
		case lookup("MONGO_URI") != "" || lookup("DB_USER") != "":
			backend = StoreMongo
		case lookup("GOOGLE_CLOUD_PROJECT") != "":
			backend = StoreFirestore
		default:
			backend = StoreMemory
		}
	}

	cfg := &StoreConfig{Backend: backend}
	switch backend {
	case StoreMemory:
	case StoreMongo:
		m, err := LoadMongoConfigFromEnv()
		if err != nil {
			return nil, err
		}
		cfg.Mongo = m
	case StoreFirestore:
		f, err := LoadFirestoreConfigFromEnv()
		if err != nil {
			return nil, err
		}
		cfg.Firestore = f
	default:
		return nil, fmt.Errorf("%w: STORE_BACKEND=%q", ErrInvalidValue, backend)
	}
	return cfg, nil
}

// MongoConfig は MongoDB への接続設定。
type MongoConfig struct {
	URI      string
	Database string
	// Transactions が偽ならレプリカセット無しとみなし、書き込みを順に行う。
	Transactions bool
}

func LoadMongoConfigFromEnv() (*MongoConfig, error) {
	uri := lookup("MONGO_URI")
	if uri == "" {
		user, pass := lookup("DB_USER"), lookup("DB_PASS")
		if user == "" {
			return nil, ErrMongoURIBlank
		}
		u := url.URL{
			Scheme:   "mongodb+srv",
			User:     url.UserPassword(user, pass),
			Host:     stringOr("DB_HOST", defaultMongoHost),
			Path:     "/",
			RawQuery: "retryWrites=true&w=majority&appName=Cluster0",
		}
		uri = u.String()
	}
	tx, err := boolOr("MONGO_TRANSACTIONS", true)
	if err != nil {
		return nil, err
	}
	return &MongoConfig{
		URI:          uri,
		Database:     stringOr("DB_NAME", defaultMongoDatabase),
		Transactions: tx,
	}, nil
}

// FirestoreConfig は Firestore クライアント初期化に必要な設定を保持する。
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	EmulatorHost    string
}

func LoadFirestoreConfigFromEnv() (*FirestoreConfig, error) {
	projectID := lookup("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, ErrFirestoreProjectIDBlank
	}
	return &FirestoreConfig{
		ProjectID:       projectID,
		CredentialsFile: lookup("GOOGLE_APPLICATION_CREDENTIALS"),
		EmulatorHost:    lookup("FIRESTORE_EMULATOR_HOST"),
	}, nil
}

// MailConfig は送信メールの設定。
type MailConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	DashboardURL string
}

// Enabled は SMTP で実際に送るかどうかを返す。資格情報が無ければログだけ残す。
func (c *MailConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

func LoadMailConfigFromEnv() (*MailConfig, error) {
	port, err := intOr("SMTP_PORT", defaultSMTPPort)
	if err != nil {
		return nil, err
	}
	user := lookup("EMAIL_USER")
	return &MailConfig{
		Host:         stringOr("SMTP_HOST", defaultSMTPHost),
		Port:         port,
		Username:     user,
		Password:     lookup("EMAIL_PASS"),
		From:         stringOr("MAIL_FROM", user),
		DashboardURL: stringOr("DASHBOARD_URL", defaultDashboardURL),
	}, nil
}

// QueueBackend は通知ジョブの受け渡し先。
type QueueBackend string

const (
	QueueMemory    QueueBackend = "memory"
	QueueFirestore QueueBackend = "firestore"
	QueueRedis     QueueBackend = "redis"
)

// QueueConfig は通知キューの設定。
type QueueConfig struct {
	Backend     QueueBackend
	RedisURL    string
	RedisKey    string
	Buffer      int
	MaxAttempts int
}

func LoadQueueConfigFromEnv() (*QueueConfig, error) {
	backend := QueueBackend(strings.ToLower(stringOr("NOTIFY_QUEUE_BACKEND", string(QueueMemory))))
	switch backend {
	case QueueMemory, QueueFirestore, QueueRedis:
	default:
		return nil, fmt.Errorf("%w: NOTIFY_QUEUE_BACKEND=%q", ErrInvalidValue, backend)
	}
	attempts, err := intOr("NOTIFY_MAX_ATTEMPTS", 1)
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		return nil, fmt.Errorf("%w: NOTIFY_MAX_ATTEMPTS must be >= 1", ErrInvalidValue)
	}
	buffer, err := intOr("NOTIFY_QUEUE_BUFFER", defaultQueueBuffer)
	if err != nil {
		return nil, err
	}
	cfg := &QueueConfig{
		Backend:     backend,
		RedisURL:    lookup("REDIS_URL"),
		RedisKey:    lookup("REDIS_QUEUE_KEY"),
		Buffer:      buffer,
		MaxAttempts: attempts,
	}
	if backend == QueueRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("%w: REDIS_URL is required for the redis queue", ErrInvalidValue)
	}
	return cfg, nil
}

// CapacityConfig は募集人数の扱い。
type CapacityConfig struct {
	Policy string
}

func LoadCapacityConfigFromEnv() (*CapacityConfig, error) {
	return &CapacityConfig{Policy: stringOr("CAPACITY_POLICY", "strict")}, nil
}

// ReconcileConfig は突き合わせ処理の設定。Interval が 0 ならワーカーは定期実行しない。
type ReconcileConfig struct {
	Grace    time.Duration
	Interval time.Duration
}

func LoadReconcileConfigFromEnv() (*ReconcileConfig, error) {
	grace, err := durationOr("RECONCILE_GRACE", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	interval, err := durationOr("RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	return &ReconcileConfig{Grace: grace, Interval: interval}, nil
}
