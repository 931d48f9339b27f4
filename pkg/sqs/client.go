package sqs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"oip/dpreport/internal/framework"
)

const attrReceiveCount = "ApproximateReceiveCount"

// API SQS SDK 中用到的方法，测试时可替换
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Config SQS 连接配置
type Config struct {
	Region          string
	Endpoint        string // 非空时覆盖默认 endpoint（LocalStack）
	AccessKeyID     string // 为空时走默认凭证链
	SecretAccessKey string
}

// Client SQS 客户端封装
type Client struct {
	api API
}

var _ framework.MessageSource = (*Client)(nil)

// NewClient 创建 SQS 客户端
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config failed: %w", err)
	}

	api := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewClientWithAPI(api), nil
}

// NewClientWithAPI 使用已有的 SDK 客户端
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// Consume 长轮询拉取一批消息（实现 MessageSource 接口）
func (c *Client) Consume(ctx context.Context, req *framework.ConsumeRequest) ([]*framework.Message, error) {
	maxMessages := req.MaxMessages
	if maxMessages <= 0 || maxMessages > framework.MaxBatchSize {
		maxMessages = framework.MaxBatchSize
	}

	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(req.Queue),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(req.WaitTime.Seconds()),
		VisibilityTimeout:     int32(req.VisibilityTimeout.Seconds()),
		MessageAttributeNames: []string{"All"},
		AttributeNames:        []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive failed: %w", err)
	}

	msgs := make([]*framework.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, toMessage(req.Queue, m))
	}
	return msgs, nil
}

// Ack 删除消息（实现 MessageSource 接口）
func (c *Client) Ack(ctx context.Context, queue string, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queue),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete failed: %w", err)
	}
	return nil
}

// Publish 发送消息，返回消息 ID
func (c *Client) Publish(ctx context.Context, queue string, body string) (string, error) {
	out, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queue),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("sqs send failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func toMessage(queue string, m sqstypes.Message) *framework.Message {
	msg := &framework.Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Queue:         queue,
		Body:          aws.ToString(m.Body),
		Extra:         make(map[string]string, len(m.Attributes)+len(m.MessageAttributes)),
	}

	for k, v := range m.Attributes {
		msg.Extra[k] = v
	}
	for k, v := range m.MessageAttributes {
		if v.StringValue != nil {
			msg.Extra[k] = *v.StringValue
		}
	}
	if n, err := strconv.Atoi(m.Attributes[attrReceiveCount]); err == nil {
		msg.Attempts = n
	}
	return msg
}
