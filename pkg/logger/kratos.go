package logger

import (
	"context"
	"fmt"

	kratoslog "github.com/go-kratos/kratos/v2/log"
)

// kratosAdapter 把基础设施层的Kratos日志桥接到zap
type kratosAdapter struct {
	logger Logger
}

// NewKratosLogger 创建Kratos日志适配器，附带服务名和版本
func NewKratosLogger(l Logger, serviceName, version string) kratoslog.Logger {
	return kratoslog.With(&kratosAdapter{logger: l},
		"service.name", serviceName,
		"service.version", version,
	)
}

// Log 实现Kratos Logger接口
func (ka *kratosAdapter) Log(level kratoslog.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}

	var msg string
	fields := make([]Field, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == kratoslog.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, F(key, keyvals[i+1]))
	}

	ctx := context.Background()
	switch level {
	case kratoslog.LevelDebug:
		ka.logger.Debug(ctx, msg, fields...)
	case kratoslog.LevelWarn:
		ka.logger.Warn(ctx, msg, fields...)
	case kratoslog.LevelError:
		ka.logger.Error(ctx, msg, fields...)
	case kratoslog.LevelFatal:
		ka.logger.Fatal(ctx, msg, fields...)
	default:
		ka.logger.Info(ctx, msg, fields...)
	}
	return nil
}
