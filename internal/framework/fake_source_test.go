package framework

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"oip/dpreport/pkg/logger"
)

// fakeSource 内存消息源，按顺序返回预置批次
type fakeSource struct {
	mu         sync.Mutex
	batches    [][]*Message
	consumeErr error
	ackErr     error
	requests   []ConsumeRequest
	acked      []string
}

func (f *fakeSource) Consume(ctx context.Context, req *ConsumeRequest) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, *req)
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeSource) Ack(ctx context.Context, queue string, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, receiptHandle)
	return nil
}

func (f *fakeSource) ackedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewFromZap(zap.New(core)), logs
}

func testQueueConfig() *QueueConfig {
	cfg, err := QueueConfig{
		QueueName:         "https://sqs.local/000000000000/metrics",
		MaxMessages:       5,
		WaitTime:          2 * time.Second,
		VisibilityTimeout: 30 * time.Second,
	}.Normalize()
	if err != nil {
		panic(err)
	}
	return &cfg
}
