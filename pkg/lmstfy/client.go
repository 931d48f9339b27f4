package lmstfy

import (
	"context"
	"fmt"

	"github.com/bitleak/lmstfy/client"

	"oip/dpreport/internal/framework"
)

const defaultTries = 3

// api lmstfy SDK 中用到的操作
type api interface {
	consume(queue string, ttr, timeout uint32) (*client.Job, error)
	ack(queue, jobID string) error
	publish(queue string, data []byte, ttl, delay uint32) (string, error)
}

type sdkAPI struct {
	cli *client.LmstfyClient
}

func (a *sdkAPI) consume(queue string, ttr, timeout uint32) (*client.Job, error) {
	job, err := a.cli.Consume(queue, ttr, timeout)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (a *sdkAPI) ack(queue, jobID string) error {
	if err := a.cli.Ack(queue, jobID); err != nil {
		return err
	}
	return nil
}

func (a *sdkAPI) publish(queue string, data []byte, ttl, delay uint32) (string, error) {
	jobID, err := a.cli.Publish(queue, data, ttl, defaultTries, delay)
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// Client Lmstfy 客户端封装
// lmstfy 每次只返回一个 job，因此一个批次最多一条消息，receipt handle 即 job id
type Client struct {
	api       api
	namespace string
}

var _ framework.MessageSource = (*Client)(nil)

// NewClient 创建 Lmstfy 客户端
func NewClient(host string, port int, namespace string, token string) *Client {
	return &Client{
		api:       &sdkAPI{cli: client.NewLmstfyClient(host, port, namespace, token)},
		namespace: namespace,
	}
}

// Consume 消费消息（实现 MessageSource 接口）
// VisibilityTimeout 对应 TTR，WaitTime 对应阻塞等待时间
func (c *Client) Consume(ctx context.Context, req *framework.ConsumeRequest) ([]*framework.Message, error) {
	ttr := uint32(req.VisibilityTimeout.Seconds())
	timeout := uint32(req.WaitTime.Seconds())

	job, err := c.api.consume(req.Queue, ttr, timeout)
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}

	// 超时未拉到消息
	if job == nil {
		return []*framework.Message{}, nil
	}

	msg := &framework.Message{
		ID:            job.ID,
		ReceiptHandle: job.ID,
		Queue:         req.Queue,
		Body:          string(job.Data),
		Extra: map[string]string{
			"namespace": c.namespace,
		},
	}
	return []*framework.Message{msg}, nil
}

// Ack 确认消息（实现 MessageSource 接口）
func (c *Client) Ack(ctx context.Context, queue string, jobID string) error {
	if err := c.api.ack(queue, jobID); err != nil {
		return fmt.Errorf("lmstfy ack failed: %w", err)
	}
	return nil
}

// Publish 发布消息，返回 job id
func (c *Client) Publish(ctx context.Context, queue string, body string) (string, error) {
	jobID, err := c.api.publish(queue, []byte(body), 0, 0)
	if err != nil {
		return "", fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return jobID, nil
}
