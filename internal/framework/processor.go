package framework

import (
	"context"
	"fmt"
	"time"
)

// Processor 处理器：调用业务 Handler，成功后确认（删除）消息
type Processor struct {
	cfg     *QueueConfig
	source  MessageSource
	handler Handler // 业务处理函数（注入的 GetProcess）
	logger  Logger
	metrics MetricsCollector
}

// NewProcessor 创建处理器
func NewProcessor(cfg *QueueConfig, source MessageSource, handler Handler, logger Logger, metrics MetricsCollector) *Processor {
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	return &Processor{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

// ProcessBatch 按接收顺序逐条处理，单条失败不影响同批其他消息
func (p *Processor) ProcessBatch(ctx context.Context, msgs []*Message) BatchOutcome {
	outcome := BatchOutcome{Results: make([]ProcessResult, 0, len(msgs))}
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		outcome.add(p.Process(ctx, msg))
	}
	return outcome
}

// Process 处理单个消息
// Handler 失败只记录日志，消息留给 broker 在可见性超时后重新投递
func (p *Processor) Process(ctx context.Context, msg *Message) ProcessResult {
	startTime := time.Now()
	result := ProcessResult{MessageID: msg.ID}

	procCtx := context.WithValue(ctx, "message_id", msg.ID)
	p.logger.Debugf(procCtx, "[Processor] Processing message: %s", msg.ID)

	if err := p.invoke(procCtx, msg); err != nil {
		result.Error = err
		result.Duration = time.Since(startTime)
		p.metrics.RecordProcess(p.cfg.QueueName, false, result.Duration)
		p.logger.Errorf(procCtx, "[Processor] Failed to process message [id=%s]. It will be re-processed after visibility timeout. Error: %v",
			msg.ID, err)
		return result
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	p.metrics.RecordProcess(p.cfg.QueueName, true, result.Duration)

	if err := p.Acknowledge(procCtx, msg); err != nil {
		result.Error = err
		p.logger.Errorf(procCtx, "[Processor] Failed to delete message [id=%s]. It will be reprocessed. Error: %v",
			msg.ID, err)
		return result
	}
	result.Acked = true

	p.logger.Infof(procCtx, "[Processor] Message processed: %s, duration: %v", msg.ID, result.Duration)
	return result
}

// Acknowledge 确认消息（使用 receipt handle 删除）
func (p *Processor) Acknowledge(ctx context.Context, msg *Message) error {
	queue := p.cfg.QueueName

	p.logger.Debugf(ctx, "[Processor] Attempting to delete message [id=%s]", msg.ID)

	if err := p.source.Ack(ctx, queue, msg.ReceiptHandle); err != nil {
		p.metrics.RecordAck(queue, false)
		return &TransportError{Op: "ack", Queue: queue, Err: err}
	}
	p.metrics.RecordAck(queue, true)
	return nil
}

// invoke 调用 Handler（带超时，捕获 panic）
func (p *Processor) invoke(ctx context.Context, msg *Message) (err error) {
	handlerCtx, cancel := context.WithTimeout(ctx, p.cfg.HandlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{MessageID: msg.ID, Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()

	if herr := p.handler(handlerCtx, msg); herr != nil {
		return &HandlerError{MessageID: msg.ID, Err: herr}
	}
	return nil
}
