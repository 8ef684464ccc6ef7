// Package logutil holds the process-wide zap logger. It is initialised once
// from config through pingcap/log and is a no-op logger until then.
package logutil

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	pclog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	// Level 日志级别：debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format 输出格式：text 或 json
	Format string `toml:"format" json:"format"`
	// File 日志文件，为空时输出到 stderr
	File string `toml:"file" json:"file"`
	// MaxSize 单个日志文件大小，单位 MB
	MaxSize int `toml:"max-size" json:"max_size"`
	// MaxDays 日志保留天数
	MaxDays int `toml:"max-days" json:"max_days"`
	// MaxBackups 保留的旧日志文件数
	MaxBackups int `toml:"max-backups" json:"max_backups"`
}

type queryIDKey struct{}

var bgLogger atomic.Pointer[zap.Logger]

func init() {
	bgLogger.Store(zap.NewNop())
}

// InitLogger 按配置初始化全局日志
func InitLogger(cfg *Config) error {
	logger, props, err := pclog.InitLogger(&pclog.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		File: pclog.FileLogConfig{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxDays:    cfg.MaxDays,
			MaxBackups: cfg.MaxBackups,
		},
	})
	if err != nil {
		return errors.Wrap(err, "init logger failed")
	}
	pclog.ReplaceGlobals(logger, props)
	bgLogger.Store(logger)
	return nil
}

// ReplaceLogger 替换全局日志，测试中使用
func ReplaceLogger(logger *zap.Logger) {
	bgLogger.Store(logger)
}

// BgLogger 返回不带查询上下文的全局日志
func BgLogger() *zap.Logger {
	return bgLogger.Load()
}

// SetLevel 动态调整日志级别。级别保存在 pingcap/log 的全局属性中，
// 作用于最近一次 InitLogger 创建的日志；之后再次 InitLogger 会使用配置中的级别。
func SetLevel(l zapcore.Level) {
	pclog.SetLevel(l)
}

// GetLevel 返回当前日志级别
func GetLevel() zapcore.Level {
	return pclog.GetLevel()
}

// WithQueryID 把查询 id 放进 context
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, queryID)
}

// QueryID 取出 context 中的查询 id
func QueryID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(queryIDKey{}).(string)
	return id, ok
}

// Logger 返回带查询 id 字段的日志
func Logger(ctx context.Context) *zap.Logger {
	if id, ok := QueryID(ctx); ok {
		return BgLogger().With(zap.String("query_id", id))
	}
	return BgLogger()
}
