package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
	Sync() error
}

// FileConfig 日志文件滚动配置（Filename 为空时只输出到 stdout）
type FileConfig struct {
	Filename   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
}

// ZapLogger Zap 日志实现
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger 创建 Zap 日志实例
func NewZapLogger(level string) (Logger, error) {
	return NewZapLoggerWithFile(level, FileConfig{})
}

// NewZapLoggerWithFile 创建 Zap 日志实例，可选同时写入滚动文件
func NewZapLoggerWithFile(level string, file FileConfig) (Logger, error) {
	zapLevel := parseLevel(level)
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapLevel),
	}

	if file.Filename != "" {
		writer := &lumberjack.Logger{
			Filename:   file.Filename,
			MaxSize:    file.MaxSize,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAge,
			Compress:   file.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), zapLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{logger: logger}, nil
}

// NewFromZap 包装已有的 zap.Logger（测试中配合 observer 使用）
func NewFromZap(l *zap.Logger) Logger {
	return &ZapLogger{logger: l}
}

// parseLevel 解析日志级别
func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// extractFields 从 Context 提取日志字段
func (l *ZapLogger) extractFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0)
	if ctx == nil {
		return fields
	}

	// 提取 trace_id
	if traceID, ok := ctx.Value("trace_id").(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}

	// 提取 worker_id
	if workerID, ok := ctx.Value("worker_id").(int); ok {
		fields = append(fields, zap.Int("worker_id", workerID))
	}

	// 提取 message_id
	if messageID, ok := ctx.Value("message_id").(string); ok && messageID != "" {
		fields = append(fields, zap.String("message_id", messageID))
	}

	return fields
}

// Debugf 输出 Debug 日志
func (l *ZapLogger) Debugf(ctx context.Context, format string, args ...interface{}) {
	fields := l.extractFields(ctx)
	l.logger.Debug(fmt.Sprintf(format, args...), fields...)
}

// Infof 输出 Info 日志
func (l *ZapLogger) Infof(ctx context.Context, format string, args ...interface{}) {
	fields := l.extractFields(ctx)
	l.logger.Info(fmt.Sprintf(format, args...), fields...)
}

// Warnf 输出 Warn 日志
func (l *ZapLogger) Warnf(ctx context.Context, format string, args ...interface{}) {
	fields := l.extractFields(ctx)
	l.logger.Warn(fmt.Sprintf(format, args...), fields...)
}

// Errorf 输出 Error 日志
func (l *ZapLogger) Errorf(ctx context.Context, format string, args ...interface{}) {
	fields := l.extractFields(ctx)
	l.logger.Error(fmt.Sprintf(format, args...), fields...)
}

// Sync 同步日志缓冲区
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
