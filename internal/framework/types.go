package framework

import "time"

// Message 消息结构（框架内部流转）
type Message struct {
	ID            string            // 消息 ID（日志关联用）
	ReceiptHandle string            // 确认凭证（一次性，删除消息用）
	Queue         string            // 队列地址
	Body          string            // 原始消息体
	Attempts      int               // 投递次数（broker 提供时有效）
	Extra         map[string]string // 扩展属性
}

// ConsumeRequest 拉取请求
type ConsumeRequest struct {
	Queue             string
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
}

// ProcessResult 单条消息处理结果
type ProcessResult struct {
	MessageID string        // 消息 ID
	Success   bool          // Handler 是否成功
	Acked     bool          // 是否已确认删除
	Error     error         // Handler 错误或确认错误
	Duration  time.Duration // 处理耗时
}

// BatchOutcome 一批消息的处理汇总
type BatchOutcome struct {
	Total     int
	Succeeded int
	Failed    int
	AckFailed int
	Results   []ProcessResult
}

// add 累计单条结果
func (o *BatchOutcome) add(r ProcessResult) {
	o.Total++
	switch {
	case !r.Success:
		o.Failed++
	case !r.Acked:
		o.Succeeded++
		o.AckFailed++
	default:
		o.Succeeded++
	}
	o.Results = append(o.Results, r)
}
