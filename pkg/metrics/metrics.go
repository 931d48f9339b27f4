// Package metrics 消费者 Prometheus 指标，实现 framework.MetricsCollector
//   - messages_received_total              {queue}
//   - messages_processed_total             {queue, status}
//   - message_processing_duration_seconds  {queue}
//   - messages_acked_total                 {queue, status}
//   - cycle_errors_total                   {queue}
//   - active_workers                       {queue}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"oip/dpreport/internal/framework"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// ConsumerMetrics 消费者指标
type ConsumerMetrics struct {
	messagesReceived  *prometheus.CounterVec
	messagesProcessed *prometheus.CounterVec
	processingTime    *prometheus.HistogramVec
	messagesAcked     *prometheus.CounterVec
	cycleErrors       *prometheus.CounterVec
	activeWorkers     *prometheus.GaugeVec
}

var _ framework.MetricsCollector = (*ConsumerMetrics)(nil)

// NewConsumerMetrics 创建并注册消费者指标，reg 为 nil 时使用默认 Registerer
func NewConsumerMetrics(namespace string, reg prometheus.Registerer) *ConsumerMetrics {
	if namespace == "" {
		namespace = "dpreport"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ConsumerMetrics{
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received from the queue",
		}, []string{"queue"}),

		// status: success, error
		messagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Total number of messages handled",
		}, []string{"queue", "status"}),

		processingTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_processing_duration_seconds",
			Help:      "Time spent handling a single message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),

		messagesAcked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_acked_total",
			Help:      "Total number of delete (ack) calls",
		}, []string{"queue", "status"}),

		cycleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_errors_total",
			Help:      "Total number of poll cycles that ended with an error",
		}, []string{"queue"}),

		activeWorkers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Number of running poll workers",
		}, []string{"queue"}),
	}
}

func (m *ConsumerMetrics) RecordReceive(queue string, count int) {
	m.messagesReceived.WithLabelValues(queue).Add(float64(count))
}

func (m *ConsumerMetrics) RecordProcess(queue string, success bool, duration time.Duration) {
	m.messagesProcessed.WithLabelValues(queue, status(success)).Inc()
	m.processingTime.WithLabelValues(queue).Observe(duration.Seconds())
}

func (m *ConsumerMetrics) RecordAck(queue string, success bool) {
	m.messagesAcked.WithLabelValues(queue, status(success)).Inc()
}

func (m *ConsumerMetrics) RecordCycleError(queue string) {
	m.cycleErrors.WithLabelValues(queue).Inc()
}

func (m *ConsumerMetrics) SetActiveWorkers(queue string, count int) {
	m.activeWorkers.WithLabelValues(queue).Set(float64(count))
}

func status(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}
