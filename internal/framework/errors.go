package framework

import (
	"errors"
	"fmt"
)

// ErrShutdown 监听循环因停止信号退出（非异常）
var ErrShutdown = errors.New("listener has been stopped")

// TransportError broker 调用失败（网络、鉴权、限流）
type TransportError struct {
	Op    string // consume / ack
	Queue string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s on %s: %v", e.Op, e.Queue, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HandlerError 业务 Handler 处理失败
type HandlerError struct {
	MessageID string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handle message %s: %v", e.MessageID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsTransportError 判断是否为 broker 错误
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsHandlerError 判断是否为 Handler 错误
func IsHandlerError(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}
