package framework

import (
	"context"
)

// MessageSource 消息源接口（适配不同 MQ）
type MessageSource interface {
	// Consume 拉取一批消息（长轮询，最多阻塞 WaitTime）
	// 没有消息时返回空切片和 nil
	Consume(ctx context.Context, req *ConsumeRequest) ([]*Message, error)

	// Ack 确认消息（删除消息）
	Ack(ctx context.Context, queue string, receiptHandle string) error
}

// Logger 日志接口
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
}

// Handler 业务处理函数，返回 nil 表示处理成功
type Handler func(ctx context.Context, msg *Message) error
