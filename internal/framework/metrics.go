package framework

import "time"

// MetricsCollector 消费指标收集接口
// 默认使用 NoOpMetrics，Prometheus 实现见 pkg/metrics
type MetricsCollector interface {
	RecordReceive(queue string, count int)
	RecordProcess(queue string, success bool, duration time.Duration)
	RecordAck(queue string, success bool)
	RecordCycleError(queue string)
	SetActiveWorkers(queue string, count int)
}

// NoOpMetrics 不做任何事的指标实现
type NoOpMetrics struct{}

func (NoOpMetrics) RecordReceive(queue string, count int)                            {}
func (NoOpMetrics) RecordProcess(queue string, success bool, duration time.Duration) {}
func (NoOpMetrics) RecordAck(queue string, success bool)                             {}
func (NoOpMetrics) RecordCycleError(queue string)                                    {}
func (NoOpMetrics) SetActiveWorkers(queue string, count int)                         {}
