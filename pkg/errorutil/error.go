package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 业务错误（包含可重试标记）
// 不可重试的错误表示消息本身有问题，重新投递也不会成功
type Error struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	DevDetails string `json:"dev_details,omitempty"`
	cause      error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap 返回原始错误
func (e *Error) Unwrap() error {
	return e.cause
}

// Retriable 创建可重试错误（网络错误、临时故障等）
func Retriable(message string, cause error) *Error {
	return newError(http.StatusInternalServerError, message, true, cause)
}

// NonRetriable 创建不可重试错误（参数错误、业务规则错误等）
func NonRetriable(message string, cause error) *Error {
	return newError(http.StatusBadRequest, message, false, cause)
}

// NotFound 创建资源不存在错误
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, message, false, nil)
}

func newError(code int, message string, retryable bool, cause error) *Error {
	e := &Error{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		cause:     cause,
	}
	if cause != nil {
		e.DevDetails = fmt.Sprintf("%+v", cause)
	}
	return e
}

// Wrap 包装错误，未知错误视为可重试的内部错误
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Retriable("internal error", err)
}

// IsRetriable 判断错误是否值得重新投递
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	return Wrap(err).Retryable
}

// HTTPStatus 错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return Wrap(err).Code
}
