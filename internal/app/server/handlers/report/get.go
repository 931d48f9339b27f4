package report

import (
	"errors"

	"github.com/gin-gonic/gin"

	"oip/dpreport/internal/app/pkg/ginx"
	"oip/dpreport/internal/business"
)

// Get godoc
// @Summary      获取指标累计值
// @Tags         reportes
// @Produce      json
// @Param        metric path string true "指标名"
// @Success      200 {object} ginx.Response{data=MetricResponse} "查询成功"
// @Failure      400 {object} ginx.Response "指标名不合法"
// @Failure      401 {object} ginx.Response "未认证"
// @Failure      403 {object} ginx.Response "无权限"
// @Failure      404 {object} ginx.Response "指标不存在"
// @Failure      500 {object} ginx.Response "服务器错误"
// @Security     BearerAuth
// @Router       /reportes/{metric} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("metric")

	metric, err := h.metricService.GetMetric(ctx, name)
	switch {
	case err == nil:
		ginx.Success(c, MetricResponse{Name: metric.Name, Value: metric.Value.String()})
	case errors.Is(err, business.ErrInvalidMetricName):
		ginx.BadRequest(c, "Invalid endpoint.")
	case errors.Is(err, business.ErrMetricNotFound):
		ginx.NotFound(c, "metric not found")
	default:
		h.log.Errorf(ctx, "[ReportHandler] get metric %s failed: %v", name, err)
		ginx.InternalError(c, "We are sorry, something went wrong. Please try again later.")
	}
}
