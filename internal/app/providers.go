package app

import (
	"errors"
	"fmt"

	"github.com/souravMitra02/volunteer-project-server/internal/adapter/mailer/nomail"
	smtpmailer "github.com/souravMitra02/volunteer-project-server/internal/adapter/mailer/smtp"
	queueFirestore "github.com/souravMitra02/volunteer-project-server/internal/adapter/queue/firestore"
	queueMemory "github.com/souravMitra02/volunteer-project-server/internal/adapter/queue/memory"
	queueRedis "github.com/souravMitra02/volunteer-project-server/internal/adapter/queue/redis"
	repoFirestore "github.com/souravMitra02/volunteer-project-server/internal/adapter/repository/firestore"
	repoMemory "github.com/souravMitra02/volunteer-project-server/internal/adapter/repository/memory"
	repoMongo "github.com/souravMitra02/volunteer-project-server/internal/adapter/repository/mongo"
	"github.com/souravMitra02/volunteer-project-server/internal/config"
	"github.com/souravMitra02/volunteer-project-server/internal/port/mailer"
	"github.com/souravMitra02/volunteer-project-server/internal/port/queue"
	"github.com/souravMitra02/volunteer-project-server/internal/port/repository"

	"go.uber.org/zap"
)

var (
	errFirestoreClientUnavailable = errors.New("app: Firestore クライアントが初期化されていません")
	errMongoClientUnavailable     = errors.New("app: MongoDB クライアントが初期化されていません")
	errRedisClientUnavailable     = errors.New("app: Redis クライアントが初期化されていません")
)

// 差し替えポイント。テストでは外部接続を伴わないものに置き換える。
var (
	storeFactory       = newStore
	queueFactory       = newNotificationQueue
	mailerFactory      = newMailer
	infraFactory       = NewInfra
	firestoreStoreCtor = func(infra *Infra) (repository.Store, error) { return repoFirestore.NewStore(infra.Firestore()) }
	firestoreQueueCtor = func(infra *Infra) (queue.NotificationQueue, error) {
		return queueFirestore.NewNotificationQueue(infra.Firestore())
	}
	mongoStoreCtor = func(infra *Infra, cfg *config.MongoConfig) (repository.Store, error) {
		return repoMongo.NewStore(infra.Mongo(), cfg.Database, cfg.Transactions)
	}
)

/**
 * 設定に応じてメモリ / Firestore / MongoDB のストアを返す。
 */
func newStore(cfg *config.StoreConfig, infra *Infra) (repository.Store, error) {
	switch cfg.Backend {
	case config.StoreFirestore:
		if infra.Firestore() == nil {
			return nil, errFirestoreClientUnavailable
		}
		store, err := firestoreStoreCtor(infra)
		if err != nil {
			return nil, fmt.Errorf("new firestore store: %w", err)
		}
		return store, nil
	case config.StoreMongo:
		if infra.Mongo() == nil {
			return nil, errMongoClientUnavailable
		}
		store, err := mongoStoreCtor(infra, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("new mongo store: %w", err)
		}
		return store, nil
	case config.StoreMemory, "":
		return repoMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("%w: store backend %q", config.ErrInvalidValue, cfg.Backend)
	}
}

/**
 * 設定に応じて通知キューを返す。メモリ以外は別プロセスのワーカーと共有できる。
 */
func newNotificationQueue(cfg *config.QueueConfig, infra *Infra) (queue.NotificationQueue, error) {
	switch cfg.Backend {
	case config.QueueFirestore:
		if infra.Firestore() == nil {
			return nil, errFirestoreClientUnavailable
		}
		q, err := firestoreQueueCtor(infra)
		if err != nil {
			return nil, fmt.Errorf("new firestore notification queue: %w", err)
		}
		return q, nil
	case config.QueueRedis:
		if infra.Redis() == nil {
			return nil, errRedisClientUnavailable
		}
		q, err := queueRedis.NewNotificationQueue(infra.Redis(), cfg.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("new redis notification queue: %w", err)
		}
		return q, nil
	case config.QueueMemory, "":
		return queueMemory.NewNotificationQueue(cfg.Buffer), nil
	default:
		return nil, fmt.Errorf("%w: queue backend %q", config.ErrInvalidValue, cfg.Backend)
	}
}

// newMailer は資格情報があれば SMTP、無ければ送らずにログだけ残すメーラーを返す。
func newMailer(log *zap.Logger, cfg *config.MailConfig) (mailer.Mailer, error) {
	if !cfg.Enabled() {
		log.Warn("mail credentials are not set; notifications will only be logged")
		return nomail.New(log.Named("nomail")), nil
	}
	m, err := smtpmailer.New(log.Named("smtp"), smtpmailer.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
	if err != nil {
		return nil, fmt.Errorf("new smtp mailer: %w", err)
	}
	return m, nil
}
