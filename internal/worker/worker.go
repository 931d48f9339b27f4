package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"oip/dpreport/internal/framework"
)

// WorkerInstance 单个拉取-处理-确认循环
type WorkerInstance struct {
	id         int
	queue      string
	subscriber *framework.Subscriber
	processor  *framework.Processor
	running    *atomic.Bool // 与 Manager 共享
	delay      time.Duration
	logger     framework.Logger
	metrics    framework.MetricsCollector
}

func newWorkerInstance(
	id int,
	subscriber *framework.Subscriber,
	processor *framework.Processor,
	running *atomic.Bool,
	delay time.Duration,
	log framework.Logger,
	metrics framework.MetricsCollector,
	queue string,
) *WorkerInstance {
	return &WorkerInstance{
		id:         id,
		queue:      queue,
		subscriber: subscriber,
		processor:  processor,
		running:    running,
		delay:      delay,
		logger:     log,
		metrics:    metrics,
	}
}

// Run 重试循环：周期出错只记录日志，运行标志为 false 时返回 ErrShutdown
func (w *WorkerInstance) Run(ctx context.Context) error {
	ctx = context.WithValue(ctx, "worker_id", w.id)
	w.logger.Infof(ctx, "[Worker-%d] Started", w.id)

	// 在途的拉取和处理不随 Stop 中断
	cycleCtx := context.WithoutCancel(ctx)

	for {
		if !w.running.Load() || ctx.Err() != nil {
			return framework.ErrShutdown
		}

		if err := w.cycle(cycleCtx); err != nil {
			w.metrics.RecordCycleError(w.queue)
			w.logger.Errorf(ctx, "[Worker-%d] An error occurred in the listener loop. Restarting poll. Error: %v", w.id, err)
		}

		// 退出检查（即使出错也要检查是否该退出）
		if !w.running.Load() {
			return framework.ErrShutdown
		}

		w.logger.Debugf(ctx, "[Worker-%d] Cycle complete. Waiting before next poll...", w.id)

		select {
		case <-ctx.Done():
			return framework.ErrShutdown
		case <-time.After(w.delay):
		}
	}
}

// cycle 一次拉取 + 逐条处理
func (w *WorkerInstance) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	ctx = context.WithValue(ctx, "trace_id", uuid.New().String())

	msgs, err := w.subscriber.Fetch(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	outcome := w.processor.ProcessBatch(ctx, msgs)
	w.logger.Infof(ctx, "[Worker-%d] Batch done: total=%d, succeeded=%d, failed=%d, ack_failed=%d",
		w.id, outcome.Total, outcome.Succeeded, outcome.Failed, outcome.AckFailed)

	return nil
}
