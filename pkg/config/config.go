package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"oip/dpreport/internal/framework"
)

const (
	BrokerSQS    = "sqs"
	BrokerLmstfy = "lmstfy"
)

// Config 全局配置（worker 与 apiserver 共用）
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Log     LogConfig     `mapstructure:"log"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	SQS     SQSConfig     `mapstructure:"sqs"`
	Lmstfy  LmstfyConfig  `mapstructure:"lmstfy"`
	Queue   QueueConfig   `mapstructure:"queue"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Report  ReportConfig  `mapstructure:"report"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// LogConfig 日志文件配置，file 为空时只输出到 stdout
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // 天
	Compress   bool   `mapstructure:"compress"`
}

type BrokerConfig struct {
	Type string `mapstructure:"type"`
}

// SQSConfig SQS 配置，endpoint 用于 LocalStack
type SQSConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LmstfyConfig Lmstfy 配置
type LmstfyConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
}

// QueueConfig 队列消费配置
type QueueConfig struct {
	Name              string        `mapstructure:"name"`
	MaxMessages       int           `mapstructure:"max_messages"`
	WaitTime          time.Duration `mapstructure:"wait_time"`          // 长轮询时间
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"` // 对 lmstfy 即 TTR
	Concurrency       int           `mapstructure:"concurrency"`        // 并行 Worker 数
	CycleDelay        time.Duration `mapstructure:"cycle_delay"`        // 两次拉取之间的间隔
	HandlerTimeout    time.Duration `mapstructure:"handler_timeout"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置，addr 为空时不启用去重和通知
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	NotifyChannel string        `mapstructure:"notify_channel"`
	DedupTTL      time.Duration `mapstructure:"dedup_ttl"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// AuthConfig JWT 鉴权配置
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminRole string `mapstructure:"admin_role"`
}

// ReportConfig 允许上报的指标名
type ReportConfig struct {
	AllowedMetrics []string `mapstructure:"allowed_metrics"`
}

// MetricsConfig Prometheus 配置，addr 非空时 worker 在该地址暴露 /metrics
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Addr      string `mapstructure:"addr"`
}

// Load 加载配置文件，环境变量 DPREPORT_<SECTION>_<KEY> 覆盖文件中的值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DPREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults 所有键都需要注册，AutomaticEnv 才能在 Unmarshal 时生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dpreport")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("broker.type", BrokerSQS)
	v.SetDefault("sqs.region", "us-east-1")
	v.SetDefault("sqs.endpoint", "")
	v.SetDefault("sqs.access_key_id", "")
	v.SetDefault("sqs.secret_access_key", "")

	v.SetDefault("lmstfy.host", "")
	v.SetDefault("lmstfy.port", 7777)
	v.SetDefault("lmstfy.namespace", "")
	v.SetDefault("lmstfy.token", "")

	v.SetDefault("queue.name", "")
	v.SetDefault("queue.max_messages", framework.MaxBatchSize)
	v.SetDefault("queue.wait_time", framework.DefaultWaitTime)
	v.SetDefault("queue.visibility_timeout", framework.DefaultVisibilityTimeout)
	v.SetDefault("queue.concurrency", 1)
	v.SetDefault("queue.cycle_delay", framework.DefaultCycleDelay)
	v.SetDefault("queue.handler_timeout", framework.DefaultHandlerTimeout)

	v.SetDefault("mysql.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.notify_channel", "metric_updated")
	v.SetDefault("redis.dedup_ttl", 24*time.Hour)

	v.SetDefault("server.port", "8080")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("report.allowed_metrics", []string{"quantity"})
	v.SetDefault("metrics.namespace", "dpreport")
	v.SetDefault("metrics.addr", "")
}

// ValidateWorker 验证 worker 进程需要的配置
func (c *Config) ValidateWorker() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Queue.Name == "" {
		return fmt.Errorf("queue.name is required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn is required")
	}

	switch c.Broker.Type {
	case BrokerSQS:
		if c.SQS.Region == "" {
			return fmt.Errorf("sqs.region is required")
		}
		if (c.SQS.AccessKeyID == "") != (c.SQS.SecretAccessKey == "") {
			return fmt.Errorf("sqs access_key_id and secret_access_key must be set together")
		}
	case BrokerLmstfy:
		if c.Lmstfy.Host == "" {
			return fmt.Errorf("lmstfy host is required")
		}
		if c.Lmstfy.Token == "" {
			return fmt.Errorf("lmstfy token is required")
		}
	default:
		return fmt.Errorf("unsupported broker type: %q", c.Broker.Type)
	}

	if _, err := c.Queue.ToFramework().Normalize(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	return c.validateReport()
}

// ValidateAPIServer 验证 apiserver 进程需要的配置
func (c *Config) ValidateAPIServer() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.AdminRole == "" {
		return fmt.Errorf("auth.admin_role is required")
	}
	return c.validateReport()
}

func (c *Config) validateReport() error {
	if len(c.Report.AllowedMetrics) == 0 {
		return fmt.Errorf("report.allowed_metrics must not be empty")
	}
	return nil
}

// ToFramework 转换为消费框架的队列配置
func (q QueueConfig) ToFramework() framework.QueueConfig {
	return framework.QueueConfig{
		QueueName:         q.Name,
		MaxMessages:       q.MaxMessages,
		WaitTime:          q.WaitTime,
		VisibilityTimeout: q.VisibilityTimeout,
		Concurrency:       q.Concurrency,
		CycleDelay:        q.CycleDelay,
		HandlerTimeout:    q.HandlerTimeout,
	}
}
