package business

import (
	"context"

	"github.com/shopspring/decimal"

	"oip/dpreport/pkg/errorutil"
)

// 业务错误
var (
	ErrInvalidMetricName = errorutil.NonRetriable("invalid metric name", nil)
	ErrMetricNotFound    = errorutil.NotFound("metric not found")
)

// Metric 指标及其累计值
type Metric struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// MetricRepository 指标仓储接口
type MetricRepository interface {
	// AddToMetric 在同一事务内读取当前值（不存在视为 0）、加上增量并写回，返回新的累计值
	AddToMetric(ctx context.Context, name string, delta decimal.Decimal) (decimal.Decimal, error)

	// GetMetric 查询指标，不存在时返回 nil, nil
	GetMetric(ctx context.Context, name string) (*Metric, error)
}

// MetricNotifier 指标更新通知
type MetricNotifier interface {
	NotifyMetricUpdated(ctx context.Context, metric *Metric) error
}
