package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"post-stats-service/backend/internal/cache"
	"post-stats-service/backend/internal/config"
	"post-stats-service/backend/internal/events"
	"post-stats-service/backend/internal/repo"
	"post-stats-service/backend/internal/store"
)

// OpenStore 按 Stats.Backend 选择存储；close 负责释放连接
func OpenStore(ctx context.Context, cfg *config.Config) (repo.StatsStore, func(), error) {
	s, closeFn, err := openBackend(ctx, cfg)
	if err != nil || !cfg.Stats.Cache {
		return s, closeFn, err
	}
	switch cfg.Stats.Backend {
	case config.BackendSqlite, config.BackendMysql:
	default:
		log.Printf("stats cache only applies to sqlite/mysql, ignored for %s", cfg.Stats.Backend)
		return s, closeFn, nil
	}
	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return cache.NewCachedStore(s, rdb), func() {
		_ = rdb.Close()
		closeFn()
	}, nil
}

// 单地址用普通客户端，多地址按集群处理
func openRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, error) {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return rdb, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (repo.StatsStore, func(), error) {
	noop := func() {}
	switch cfg.Stats.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), noop, nil

	case config.BackendFile:
		return store.NewFileStore(cfg.Stats.FilePath), noop, nil

	case config.BackendSqlite:
		s, err := store.OpenSQLite(cfg.Sqlite.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.BackendMysql:
		s, err := store.InitMySQL(cfg.Mysql.DSN)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.BackendRedis:
		rdb, err := openRedis(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return cache.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown stats backend %q", cfg.Stats.Backend)
}

// OpenKafka 未配置 brokers 时返回 nil
func OpenKafka(cfg *config.Config) (*events.KafkaDispatcher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	kafkaCfg := sarama.NewConfig()
	// SyncProducer 必须开启 Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect kafka: %w", err)
	}
	d := NewDispatcher(producer, cfg)
	return d, func() {
		d.Close()
		if err := producer.Close(); err != nil {
			log.Printf("close kafka producer: %v", err)
		}
	}, nil
}

func NewDispatcher(producer sarama.SyncProducer, cfg *config.Config) *events.KafkaDispatcher {
	return events.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		events.NewSemaphoreControl(cfg.Kafka.Workers),
		events.KafkaDispatcherOptions{
			QueueSize:   cfg.Kafka.QueueSize,
			Workers:     cfg.Kafka.Workers,
			MaxRetry:    cfg.Kafka.MaxRetry,
			BaseBackoff: cfg.KafkaBaseBackoff(),
			MaxBackoff:  cfg.KafkaMaxBackoff(),
		},
	)
}
