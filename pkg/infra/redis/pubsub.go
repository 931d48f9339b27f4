package redis

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"oip/dpreport/internal/business"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PubSub 指标更新通知（Redis 发布/订阅）
type PubSub struct {
	client  *redis.Client
	channel string
}

var _ business.MetricNotifier = (*PubSub)(nil)

// NewPubSub 创建 PubSub 实例
func NewPubSub(client *redis.Client, channel string) *PubSub {
	return &PubSub{
		client:  client,
		channel: channel,
	}
}

// MetricUpdatedNotification 指标更新通知消息
type MetricUpdatedNotification struct {
	Name      string `json:"name"`
	Value     string `json:"value"` // 十进制字符串
	Timestamp int64  `json:"timestamp"`
}

func newNotification(metric *business.Metric, now time.Time) *MetricUpdatedNotification {
	return &MetricUpdatedNotification{
		Name:      metric.Name,
		Value:     metric.Value.String(),
		Timestamp: now.Unix(),
	}
}

// NotifyMetricUpdated 发布指标更新通知
func (p *PubSub) NotifyMetricUpdated(ctx context.Context, metric *business.Metric) error {
	msgJSON, err := json.Marshal(newNotification(metric, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe 订阅通知频道
func (p *PubSub) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}

// DecodeNotification 解析订阅收到的消息
func DecodeNotification(payload string) (*MetricUpdatedNotification, error) {
	var n MetricUpdatedNotification
	if err := json.UnmarshalFromString(payload, &n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &n, nil
}
