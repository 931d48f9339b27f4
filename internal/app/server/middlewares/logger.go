package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"oip/dpreport/internal/app/pkg/ginx"
	"oip/dpreport/pkg/logger"
)

const traceHeader = "X-Trace-Id"

// Logger 请求日志，注入 trace_id 到请求 Context
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		traceID := c.GetHeader(traceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ctx := context.WithValue(c.Request.Context(), "trace_id", traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(traceHeader, traceID)

		c.Next()

		log.Infof(ctx, "[HTTP] %s %s status=%d duration=%v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Recovery 捕获 panic，返回统一的 500 响应
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(c.Request.Context(), "[HTTP] panic recovered: %v", r)
				ginx.AbortWithError(c, 500, "We are sorry, something went wrong. Please try again later.")
			}
		}()
		c.Next()
	}
}
