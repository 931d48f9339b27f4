package business

import (
	"context"
	"fmt"
	"strings"

	"oip/dpreport/pkg/logger"
)

// MetricService 指标服务：累加上报的增量、查询当前值
type MetricService struct {
	repo     MetricRepository
	notifier MetricNotifier // 可选
	allowed  map[string]struct{}
	log      logger.Logger
}

// NewMetricService 创建指标服务实例
// allowedMetrics 为可查询的指标名白名单
func NewMetricService(repo MetricRepository, notifier MetricNotifier, log logger.Logger, allowedMetrics []string) *MetricService {
	allowed := make(map[string]struct{}, len(allowedMetrics))
	for _, name := range allowedMetrics {
		allowed[name] = struct{}{}
	}
	return &MetricService{
		repo:     repo,
		notifier: notifier,
		allowed:  allowed,
		log:      log,
	}
}

// SaveMetric 将增量累加到指标上，返回累加后的指标
func (s *MetricService) SaveMetric(ctx context.Context, metric Metric) (*Metric, error) {
	if strings.TrimSpace(metric.Name) == "" {
		return nil, ErrInvalidMetricName
	}

	s.log.Infof(ctx, "[MetricService] Saving metric: name=%s, delta=%s", metric.Name, metric.Value.String())

	total, err := s.repo.AddToMetric(ctx, metric.Name, metric.Value)
	if err != nil {
		s.log.Errorf(ctx, "[MetricService] Error saving metric %s: %v", metric.Name, err)
		return nil, fmt.Errorf("add to metric %s failed: %w", metric.Name, err)
	}

	saved := &Metric{Name: metric.Name, Value: total}
	s.log.Infof(ctx, "[MetricService] Metric saved: name=%s, value=%s", saved.Name, saved.Value.String())

	// 通知失败不影响累加结果
	if s.notifier != nil {
		if err := s.notifier.NotifyMetricUpdated(ctx, saved); err != nil {
			s.log.Warnf(ctx, "[MetricService] Failed to publish metric update: %v", err)
		}
	}

	return saved, nil
}

// GetMetric 查询指标当前值
func (s *MetricService) GetMetric(ctx context.Context, name string) (*Metric, error) {
	if err := s.validateMetricName(name); err != nil {
		return nil, err
	}

	metric, err := s.repo.GetMetric(ctx, name)
	if err != nil {
		s.log.Errorf(ctx, "[MetricService] Error getting metric %s: %v", name, err)
		return nil, fmt.Errorf("get metric %s failed: %w", name, err)
	}
	if metric == nil {
		return nil, ErrMetricNotFound
	}

	s.log.Debugf(ctx, "[MetricService] Metric retrieved: name=%s, value=%s", metric.Name, metric.Value.String())
	return metric, nil
}

func (s *MetricService) validateMetricName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidMetricName
	}
	if _, ok := s.allowed[name]; !ok {
		return ErrInvalidMetricName
	}
	return nil
}
