package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workerYAML = `
app:
  name: dpreport-worker
  log_level: debug
broker:
  type: sqs
sqs:
  region: us-east-1
  endpoint: http://localhost:4566
queue:
  name: http://localhost:4566/000000000000/reportes
  max_messages: 5
  wait_time: 10s
  concurrency: 3
mysql:
  dsn: root:root@tcp(127.0.0.1:3306)/reportes?parseTime=true
report:
  allowed_metrics: [quantity, amount]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoad_FileAndDefaults 测试加载文件并填充默认值
func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, workerYAML))
	require.NoError(t, err)

	assert.Equal(t, "dpreport-worker", cfg.App.Name)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "http://localhost:4566", cfg.SQS.Endpoint)
	assert.Equal(t, 5, cfg.Queue.MaxMessages)
	assert.Equal(t, 10*time.Second, cfg.Queue.WaitTime)
	assert.Equal(t, 3, cfg.Queue.Concurrency)
	assert.Equal(t, []string{"quantity", "amount"}, cfg.Report.AllowedMetrics)

	// 默认值
	assert.Equal(t, 30*time.Second, cfg.Queue.VisibilityTimeout)
	assert.Equal(t, time.Second, cfg.Queue.CycleDelay)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
	assert.Equal(t, "metric_updated", cfg.Redis.NotifyChannel)
	assert.Equal(t, 24*time.Hour, cfg.Redis.DedupTTL)

	require.NoError(t, cfg.ValidateWorker())
}

// TestLoad_EnvOverride 测试环境变量覆盖
func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DPREPORT_QUEUE_NAME", "https://sqs.us-east-1.amazonaws.com/123/prod")
	t.Setenv("DPREPORT_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load(writeConfig(t, workerYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/prod", cfg.Queue.Name)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

// TestLoad_MissingFile 测试配置文件不存在
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestValidateWorker 测试 worker 配置校验
func TestValidateWorker(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, workerYAML))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing queue", func(c *Config) { c.Queue.Name = "" }},
		{"missing dsn", func(c *Config) { c.MySQL.DSN = "" }},
		{"unknown broker", func(c *Config) { c.Broker.Type = "kafka" }},
		{"half credentials", func(c *Config) { c.SQS.AccessKeyID = "AKIA" }},
		{"lmstfy without host", func(c *Config) { c.Broker.Type = BrokerLmstfy }},
		{"negative concurrency", func(c *Config) { c.Queue.Concurrency = -1 }},
		{"handler timeout not below visibility", func(c *Config) { c.Queue.HandlerTimeout = c.Queue.VisibilityTimeout }},
		{"no allowed metrics", func(c *Config) { c.Report.AllowedMetrics = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.ValidateWorker())
		})
	}
}

// TestValidateAPIServer 测试 apiserver 配置校验
func TestValidateAPIServer(t *testing.T) {
	cfg, err := Load(writeConfig(t, workerYAML))
	require.NoError(t, err)

	assert.Error(t, cfg.ValidateAPIServer(), "jwt secret is required")

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.ValidateAPIServer())
}

// TestQueueConfig_ToFramework 测试转换为框架配置
func TestQueueConfig_ToFramework(t *testing.T) {
	q := QueueConfig{Name: "q", MaxMessages: 4, WaitTime: 5 * time.Second, Concurrency: 2, HandlerTimeout: time.Minute}
	fc := q.ToFramework()

	assert.Equal(t, "q", fc.QueueName)
	assert.Equal(t, 4, fc.MaxMessages)
	assert.Equal(t, 5*time.Second, fc.WaitTime)
	assert.Equal(t, 2, fc.Concurrency)
	assert.Equal(t, time.Minute, fc.HandlerTimeout)
}
