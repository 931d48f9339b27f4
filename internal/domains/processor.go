package domains

import (
	"context"
	"time"

	"github.com/google/uuid"

	"oip/dpreport/internal/business"
	"oip/dpreport/internal/framework"
	"oip/dpreport/pkg/errorutil"
	"oip/dpreport/pkg/logger"
)

// MetricSaver 指标累加
type MetricSaver interface {
	SaveMetric(ctx context.Context, metric business.Metric) (*business.Metric, error)
}

// Deduplicator 消息去重（可选）
// Begin 写入处理中标记，Complete 在累加成功后写入完成标记，Release 在失败后清除处理中标记
type Deduplicator interface {
	Begin(ctx context.Context, messageID string) (business.DedupStatus, error)
	Complete(ctx context.Context, messageID string) error
	Release(ctx context.Context, messageID string) error
}

// ErrDeliveryInProgress 同一消息的另一次投递仍在处理，留在队列中等待重新投递
var ErrDeliveryInProgress = errorutil.Retriable("message is being processed by another delivery", nil)

// GetProcess 返回核心处理函数（注入到 Processor）
// dedup 为 nil 时不去重
func GetProcess(log logger.Logger, svc MetricSaver, dedup Deduplicator) framework.Handler {
	return func(ctx context.Context, msg *framework.Message) error {
		startTime := time.Now()

		// 1. 注入 TraceID
		traceID := msg.ID
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ctx = context.WithValue(ctx, "trace_id", traceID)
		ctx = context.WithValue(ctx, "message_id", msg.ID)

		log.Infof(ctx, "[GetProcess] Processing message: attempts=%d, body=%s", msg.Attempts, msg.Body)

		// 2. 解析消息体
		metric, err := parseMetric(msg.Body)
		if err != nil {
			log.Warnf(ctx, "[GetProcess] Error parsing message body: %v (retryable=%t)", err, errorutil.IsRetriable(err))
			return err
		}

		// 3. 去重（Redis 异常时照常处理）
		succeeded := false
		if dedup != nil && msg.ID != "" {
			status, dedupErr := dedup.Begin(ctx, msg.ID)
			switch {
			case dedupErr != nil:
				log.Warnf(ctx, "[GetProcess] Dedup check failed, processing anyway: %v", dedupErr)
			case status == business.DedupDone:
				log.Infof(ctx, "[GetProcess] Message already processed, skipping")
				return nil
			case status == business.DedupInProgress:
				return ErrDeliveryInProgress
			default:
				defer func() {
					// panic 时 succeeded 仍为 false，标记会被清除
					markCtx := context.WithoutCancel(ctx)
					if !succeeded {
						if releaseErr := dedup.Release(markCtx, msg.ID); releaseErr != nil {
							log.Warnf(ctx, "[GetProcess] Failed to release dedup mark: %v", releaseErr)
						}
						return
					}
					if completeErr := dedup.Complete(markCtx, msg.ID); completeErr != nil {
						log.Warnf(ctx, "[GetProcess] Failed to complete dedup mark: %v", completeErr)
					}
				}()
			}
		}

		// 4. 累加指标
		saved, err := svc.SaveMetric(ctx, metric)
		if err != nil {
			return err
		}
		succeeded = true

		log.Infof(ctx, "[GetProcess] Processing complete: name=%s, value=%s, duration=%v",
			saved.Name, saved.Value.String(), time.Since(startTime))
		return nil
	}
}
