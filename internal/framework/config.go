package framework

import (
	"fmt"
	"time"
)

const (
	// MaxBatchSize broker 单次拉取上限（SQS 为 10）
	MaxBatchSize = 10
	// MaxWaitTime 长轮询等待上限
	MaxWaitTime = 20 * time.Second

	DefaultWaitTime          = 20 * time.Second
	DefaultVisibilityTimeout = 30 * time.Second
	DefaultCycleDelay        = time.Second
	DefaultHandlerTimeout    = 25 * time.Second
)

// QueueConfig 消费者配置（启动时确定，之后只读）
type QueueConfig struct {
	QueueName         string        // 队列地址（SQS 为 Queue URL）
	MaxMessages       int           // 单次拉取最大条数
	WaitTime          time.Duration // 长轮询等待时间
	VisibilityTimeout time.Duration // 可见性超时
	Concurrency       int           // 并发拉取协程数
	CycleDelay        time.Duration // 两次拉取周期之间的间隔
	HandlerTimeout    time.Duration // 单条消息处理超时
}

// Normalize 填充默认值并校验，返回新的配置副本
func (c QueueConfig) Normalize() (QueueConfig, error) {
	if c.QueueName == "" {
		return c, fmt.Errorf("queue name is required")
	}
	if c.Concurrency < 0 || c.MaxMessages < 0 || c.WaitTime < 0 || c.VisibilityTimeout < 0 || c.CycleDelay < 0 {
		return c, fmt.Errorf("queue config values must not be negative")
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.MaxMessages == 0 || c.MaxMessages > MaxBatchSize {
		c.MaxMessages = MaxBatchSize
	}
	if c.WaitTime == 0 {
		c.WaitTime = DefaultWaitTime
	}
	if c.WaitTime > MaxWaitTime {
		c.WaitTime = MaxWaitTime
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = DefaultVisibilityTimeout
	}
	if c.CycleDelay == 0 {
		c.CycleDelay = DefaultCycleDelay
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = DefaultHandlerTimeout
	}
	// 处理未结束前消息不能重新可见
	if c.HandlerTimeout >= c.VisibilityTimeout {
		return c, fmt.Errorf("handler timeout %v must be shorter than visibility timeout %v", c.HandlerTimeout, c.VisibilityTimeout)
	}
	return c, nil
}
