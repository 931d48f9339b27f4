package framework

import (
	"context"
)

// Subscriber 订阅者：按配置从消息队列拉取一批消息
type Subscriber struct {
	cfg     *QueueConfig
	source  MessageSource // 消息源（sqs / lmstfy 适配器）
	logger  Logger
	metrics MetricsCollector
}

// NewSubscriber 创建订阅者
func NewSubscriber(cfg *QueueConfig, source MessageSource, logger Logger, metrics MetricsCollector) *Subscriber {
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	return &Subscriber{
		cfg:     cfg,
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch 拉取下一批消息
// 空批次是正常结果；broker 失败返回 *TransportError，由调用方的重试循环处理
func (s *Subscriber) Fetch(ctx context.Context) ([]*Message, error) {
	req := &ConsumeRequest{
		Queue:             s.cfg.QueueName,
		MaxMessages:       s.cfg.MaxMessages,
		WaitTime:          s.cfg.WaitTime,
		VisibilityTimeout: s.cfg.VisibilityTimeout,
	}

	s.logger.Debugf(ctx, "[Subscriber] Receiving from %s, wait_time: %v, max_messages: %d",
		req.Queue, req.WaitTime, req.MaxMessages)

	msgs, err := s.source.Consume(ctx, req)
	if err != nil {
		return nil, &TransportError{Op: "consume", Queue: req.Queue, Err: err}
	}
	if msgs == nil {
		msgs = []*Message{}
	}

	s.metrics.RecordReceive(req.Queue, len(msgs))
	s.logger.Debugf(ctx, "[Subscriber] Received %d messages", len(msgs))

	return msgs, nil
}
