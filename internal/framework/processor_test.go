package framework

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func okHandler(ctx context.Context, msg *Message) error { return nil }

// TestProcessor_ProcessBatch_AllSucceed 测试全部成功时每条消息确认一次
func TestProcessor_ProcessBatch_AllSucceed(t *testing.T) {
	source := &fakeSource{}
	log, _ := newObservedLogger()
	p := NewProcessor(testQueueConfig(), source, okHandler, log, nil)

	outcome := p.ProcessBatch(context.Background(), []*Message{
		{ID: "m1", ReceiptHandle: "r1"},
		{ID: "m2", ReceiptHandle: "r2"},
	})

	assert.Equal(t, 2, outcome.Total)
	assert.Equal(t, 2, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)
	assert.Equal(t, []string{"r1", "r2"}, source.ackedHandles())
}

// TestProcessor_ProcessBatch_FailureIsolated 测试单条失败不影响同批其他消息
func TestProcessor_ProcessBatch_FailureIsolated(t *testing.T) {
	source := &fakeSource{}
	log, logs := newObservedLogger()

	handler := func(ctx context.Context, msg *Message) error {
		if msg.ID == "bad" {
			return errors.New("invalid payload")
		}
		return nil
	}
	p := NewProcessor(testQueueConfig(), source, handler, log, nil)

	outcome := p.ProcessBatch(context.Background(), []*Message{
		{ID: "m1", ReceiptHandle: "r1"},
		{ID: "bad", ReceiptHandle: "r-bad"},
		{ID: "m3", ReceiptHandle: "r3"},
	})

	assert.Equal(t, 3, outcome.Total)
	assert.Equal(t, 2, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, []string{"r1", "r3"}, source.ackedHandles())

	require.Len(t, outcome.Results, 3)
	assert.False(t, outcome.Results[1].Success)
	assert.True(t, IsHandlerError(outcome.Results[1].Error))

	errorLogs := logs.FilterLevelExact(zapcore.ErrorLevel)
	require.Equal(t, 1, errorLogs.Len())
	assert.Contains(t, errorLogs.All()[0].Message, "bad")
}

// TestProcessor_ProcessBatch_Empty 测试空批次不确认
func TestProcessor_ProcessBatch_Empty(t *testing.T) {
	source := &fakeSource{}
	log, _ := newObservedLogger()
	p := NewProcessor(testQueueConfig(), source, okHandler, log, nil)

	outcome := p.ProcessBatch(context.Background(), nil)
	assert.Equal(t, 0, outcome.Total)
	assert.Empty(t, source.ackedHandles())
}

// TestProcessor_Process_PanicRecovered 测试 Handler panic 被转换为 HandlerError
func TestProcessor_Process_PanicRecovered(t *testing.T) {
	source := &fakeSource{}
	log, _ := newObservedLogger()
	handler := func(ctx context.Context, msg *Message) error { panic("nil map") }
	p := NewProcessor(testQueueConfig(), source, handler, log, nil)

	result := p.Process(context.Background(), &Message{ID: "m1", ReceiptHandle: "r1"})
	assert.False(t, result.Success)
	assert.True(t, IsHandlerError(result.Error))
	assert.Empty(t, source.ackedHandles())
}

// TestProcessor_Process_AckFailure 测试确认失败只记录日志
func TestProcessor_Process_AckFailure(t *testing.T) {
	source := &fakeSource{ackErr: errors.New("receipt handle expired")}
	log, logs := newObservedLogger()
	p := NewProcessor(testQueueConfig(), source, okHandler, log, nil)

	outcome := p.ProcessBatch(context.Background(), []*Message{{ID: "m1", ReceiptHandle: "r1"}})
	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 1, outcome.AckFailed)
	require.Len(t, outcome.Results, 1)
	assert.True(t, IsTransportError(outcome.Results[0].Error))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

// TestProcessor_Acknowledge_UsesConfiguredQueue 测试确认请求使用配置的队列地址
func TestProcessor_Acknowledge_UsesConfiguredQueue(t *testing.T) {
	var gotQueue string
	source := &recordingAckSource{onAck: func(queue, handle string) { gotQueue = queue }}
	log, _ := newObservedLogger()
	cfg := testQueueConfig()
	p := NewProcessor(cfg, source, okHandler, log, nil)

	require.NoError(t, p.Acknowledge(context.Background(), &Message{ID: "m1", ReceiptHandle: "r1", Queue: "other"}))
	assert.Equal(t, cfg.QueueName, gotQueue)
}

// TestProcessor_Process_HandlerTimeout 测试 Handler 获得带超时的 Context
func TestProcessor_Process_HandlerTimeout(t *testing.T) {
	source := &fakeSource{}
	log, _ := newObservedLogger()
	cfg := testQueueConfig()
	cfg.HandlerTimeout = 20 * time.Millisecond

	handler := func(ctx context.Context, msg *Message) error {
		<-ctx.Done()
		return ctx.Err()
	}
	p := NewProcessor(cfg, source, handler, log, nil)

	result := p.Process(context.Background(), &Message{ID: "m1", ReceiptHandle: "r1"})
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, context.DeadlineExceeded)
}

// TestProcessor_Redelivery_Idempotent 测试幂等 Handler 重复投递结果一致
func TestProcessor_Redelivery_Idempotent(t *testing.T) {
	source := &fakeSource{}
	log, _ := newObservedLogger()

	var mu sync.Mutex
	seen := map[string]int{}
	totals := map[string]int{}
	handler := func(ctx context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		if seen[msg.ID] > 0 {
			return nil
		}
		seen[msg.ID]++
		totals["quantity"] += 5
		return nil
	}
	p := NewProcessor(testQueueConfig(), source, handler, log, nil)

	msg := &Message{ID: "m1", ReceiptHandle: "r1", Body: `{"name":"quantity","value":5}`}
	p.Process(context.Background(), msg)
	once := totals["quantity"]

	redelivered := *msg
	redelivered.ReceiptHandle = "r1-again"
	p.Process(context.Background(), &redelivered)

	assert.Equal(t, once, totals["quantity"])
	assert.Equal(t, []string{"r1", "r1-again"}, source.ackedHandles())
}

type recordingAckSource struct {
	fakeSource
	onAck func(queue, handle string)
}

func (r *recordingAckSource) Ack(ctx context.Context, queue string, receiptHandle string) error {
	r.onAck(queue, receiptHandle)
	return nil
}
