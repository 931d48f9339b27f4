package report

import (
	"context"

	"oip/dpreport/internal/business"
	"oip/dpreport/pkg/logger"
)

// MetricReader 指标查询
type MetricReader interface {
	GetMetric(ctx context.Context, name string) (*business.Metric, error)
}

// ReportHandler 报表 HTTP 处理器
type ReportHandler struct {
	metricService MetricReader
	log           logger.Logger
}

// NewReportHandler 创建报表处理器实例
func NewReportHandler(metricService MetricReader, log logger.Logger) *ReportHandler {
	return &ReportHandler{
		metricService: metricService,
		log:           log,
	}
}

// MetricResponse 指标响应
type MetricResponse struct {
	Name  string `json:"name" example:"quantity"`
	Value string `json:"value" example:"42.5"`
}
