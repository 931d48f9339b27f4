package ginx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data,omitempty"`
}

// Meta 元数据
type Meta struct {
	Code    int    `json:"code" example:"200"`
	Message string `json:"message" example:"OK"`
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Meta: Meta{
			Code:    http.StatusOK,
			Message: "OK",
		},
		Data: data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, Response{
		Meta: Meta{
			Code:    httpCode,
			Message: message,
		},
	})
}

// AbortWithError 错误响应并终止后续 handler（用于中间件）
func AbortWithError(c *gin.Context, httpCode int, message string) {
	Error(c, httpCode, message)
	c.Abort()
}

// BadRequest 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401 错误
func Unauthorized(c *gin.Context, message string) {
	AbortWithError(c, http.StatusUnauthorized, message)
}

// Forbidden 403 错误
func Forbidden(c *gin.Context, message string) {
	AbortWithError(c, http.StatusForbidden, message)
}

// NotFound 404 错误
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
