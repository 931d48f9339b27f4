package bootstrap

import (
	"context"
	"fmt"

	"oip/dpreport/internal/business"
	"oip/dpreport/internal/framework"
	"oip/dpreport/pkg/config"
	"oip/dpreport/pkg/infra/mysql"
	"oip/dpreport/pkg/infra/redis"
	"oip/dpreport/pkg/lmstfy"
	"oip/dpreport/pkg/logger"
	"oip/dpreport/pkg/sqs"
)

// Transport 消息队列客户端：消费 + 发布
type Transport interface {
	framework.MessageSource
	Publish(ctx context.Context, queue string, body string) (string, error)
}

// NewLogger 根据配置创建日志实例
func NewLogger(cfg *config.Config) (logger.Logger, error) {
	return logger.NewZapLoggerWithFile(cfg.App.LogLevel, logger.FileConfig{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
}

// NewTransport 根据 broker.type 创建队列客户端
func NewTransport(ctx context.Context, cfg *config.Config) (Transport, error) {
	switch cfg.Broker.Type {
	case config.BrokerSQS:
		client, err := sqs.NewClient(ctx, sqs.Config{
			Region:          cfg.SQS.Region,
			Endpoint:        cfg.SQS.Endpoint,
			AccessKeyID:     cfg.SQS.AccessKeyID,
			SecretAccessKey: cfg.SQS.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BrokerLmstfy:
		return lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token), nil
	default:
		return nil, fmt.Errorf("unsupported broker type: %q", cfg.Broker.Type)
	}
}

// Dependencies 指标服务及其基础设施
type Dependencies struct {
	MetricService *business.MetricService
	Dedup         *redis.DedupStore // redis 未配置时为 nil
	cleanups      []func() error
}

// Close 释放数据库和 Redis 连接
func (d *Dependencies) Close() {
	for i := len(d.cleanups) - 1; i >= 0; i-- {
		_ = d.cleanups[i]()
	}
}

// NewDependencies 初始化 MySQL、可选的 Redis 以及指标服务
func NewDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	metricDAO, err := mysql.NewMetricDAO(cfg.MySQL.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create MetricDAO: %w", err)
	}
	deps.cleanups = append(deps.cleanups, metricDAO.Close)

	if err := metricDAO.Migrate(ctx); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to migrate metric table: %w", err)
	}

	var notifier business.MetricNotifier
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.cleanups = append(deps.cleanups, client.Close)

		if cfg.Redis.NotifyChannel != "" {
			notifier = redis.NewPubSub(client, cfg.Redis.NotifyChannel)
		}
		if cfg.Redis.DedupTTL > 0 {
			processingTTL := cfg.Queue.VisibilityTimeout
			if processingTTL <= 0 {
				processingTTL = framework.DefaultVisibilityTimeout
			}
			deps.Dedup = redis.NewDedupStore(client, processingTTL, cfg.Redis.DedupTTL)
		}
	} else {
		log.Warnf(ctx, "[Bootstrap] redis.addr is empty, dedup and notifications disabled")
	}

	deps.MetricService = business.NewMetricService(metricDAO, notifier, log, cfg.Report.AllowedMetrics)
	return deps, nil
}
