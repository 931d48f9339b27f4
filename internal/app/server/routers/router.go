package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oip/dpreport/internal/app/server/handlers/report"
	"oip/dpreport/internal/app/server/middlewares"
	"oip/dpreport/pkg/logger"
)

// Options 路由依赖
type Options struct {
	ReportHandler *report.ReportHandler
	Logger        logger.Logger
	JWTSecret     string
	AdminRole     string
	Gatherer      prometheus.Gatherer // 为 nil 时使用默认 Gatherer
}

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(opts Options) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.Recovery(opts.Logger))
	r.Use(middlewares.Logger(opts.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "dpreport",
			"message": "Service is running",
		})
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		reportes := v1.Group("/reportes")
		reportes.Use(middlewares.JWTAuth(opts.JWTSecret, opts.AdminRole))
		{
			reportes.GET("/:metric", opts.ReportHandler.Get)
		}
	}

	return r
}
