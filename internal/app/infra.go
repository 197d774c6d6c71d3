package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	queueRedis "github.com/souravMitra02/volunteer-project-server/internal/adapter/queue/redis"
	"github.com/souravMitra02/volunteer-project-server/internal/config"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	connectTimeout    = 15 * time.Second
	disconnectTimeout = 10 * time.Second
)

var (
	firestoreClientFactory = newFirestoreClient
	mongoClientFactory     = newMongoClient
	redisClientFactory     = queueRedis.OpenClient
)

// Infra は外部リソースへの接続をまとめて保持する。プロセスで 1 度だけ開き、終了時に Close する。
type Infra struct {
	log             *zap.Logger
	firestoreClient *firestore.Client
	mongoClient     *mongo.Client
	redisClient     *redis.Client
}

/**
 * 選ばれたストアとキューが必要とするクライアントだけを開く。
 * 疎通確認に失敗した場合は開いた分を閉じてからエラーを返す。
 */
func NewInfra(ctx context.Context, log *zap.Logger, store *config.StoreConfig, q *config.QueueConfig) (*Infra, error) {
	infra := &Infra{log: log}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	needFirestore := store.Backend == config.StoreFirestore || q.Backend == config.QueueFirestore
	if needFirestore {
		fsCfg := store.Firestore
		if fsCfg == nil {
			var err error
			if fsCfg, err = config.LoadFirestoreConfigFromEnv(); err != nil {
				return nil, err
			}
		}
		client, err := firestoreClientFactory(ctx, fsCfg)
		if err != nil {
			return nil, err
		}
		infra.firestoreClient = client
	}

	if store.Backend == config.StoreMongo {
		client, err := mongoClientFactory(ctx, store.Mongo)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.mongoClient = client
	}

	if q.Backend == config.QueueRedis {
		client, err := redisClientFactory(ctx, q.RedisURL)
		if err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		infra.redisClient = client
	}
	return infra, nil
}

// Firestore は Firestore クライアントを返す（設定されていない場合は nil）。
func (i *Infra) Firestore() *firestore.Client {
	if i == nil {
		return nil
	}
	return i.firestoreClient
}

// Mongo は MongoDB クライアントを返す（設定されていない場合は nil）。
func (i *Infra) Mongo() *mongo.Client {
	if i == nil {
		return nil
	}
	return i.mongoClient
}

// Redis は Redis クライアントを返す（設定されていない場合は nil）。
func (i *Infra) Redis() *redis.Client {
	if i == nil {
		return nil
	}
	return i.redisClient
}

// Close は保持しているリソースを順次クローズする。
func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	var retErr error
	if i.redisClient != nil {
		retErr = mergeCloseError(i.log, retErr, "redis", i.redisClient.Close)
	}
	if i.mongoClient != nil {
		retErr = mergeCloseError(i.log, retErr, "mongo", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
			defer cancel()
			return i.mongoClient.Disconnect(ctx)
		})
	}
	if i.firestoreClient != nil {
		retErr = mergeCloseError(i.log, retErr, "firestore", i.firestoreClient.Close)
	}
	return retErr
}

func newFirestoreClient(ctx context.Context, cfg *config.FirestoreConfig) (*firestore.Client, error) {
	opts := []option.ClientOption{}

	// エミュレータ利用時は認証不要なので Credentials は読み込まない。
	if cfg.CredentialsFile != "" && cfg.EmulatorHost == "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firestore client: %w", err)
	}

	// 1 件読んで疎通を確かめる
	it := client.Collections(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		_ = client.Close()
		return nil, fmt.Errorf("ping firestore: %w", err)
	}
	return client, nil
}

func newMongoClient(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func mergeCloseError(log *zap.Logger, current error, label string, fn func() error) error {
	if fn == nil {
		return current
	}
	if err := fn(); err != nil {
		if log != nil {
			log.Warn("close error", zap.String("resource", label), zap.Error(err))
		}
		if current == nil {
			return err
		}
	}
	return current
}
