package api

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
)

// String 返回日志级别字符串
func (l LogLevel) String() string {
	switch l {
	case LogError:
		return "ERROR"
	case LogWarn:
		return "WARN"
	case LogInfo:
		return "INFO"
	case LogDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel 解析日志级别 (debug/info/warn/error), 未知值返回 LogInfo
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogDebug
	case "warn", "warning":
		return LogWarn
	case "error":
		return LogError
	}
	return LogInfo
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogError:
		return zapcore.ErrorLevel
	case LogWarn:
		return zapcore.WarnLevel
	case LogDebug:
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// Logger 日志接口
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// ZapLogger zap 实现
type ZapLogger struct {
	mu     sync.Mutex
	level  LogLevel
	atomic zap.AtomicLevel
	sugar  *zap.SugaredLogger
	base   *zap.Logger
}

// NewZapLogger 创建 zap 日志; format 为 "json" 时使用生产配置, 否则使用开发配置(console)
func NewZapLogger(level LogLevel, format string) (*ZapLogger, error) {
	var config zap.Config
	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level.zapLevel())

	base, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &ZapLogger{level: level, atomic: config.Level, sugar: base.Sugar(), base: base}, nil
}

// NewZapLoggerFrom 包装已有的 zap.Logger (测试中使用 observer)
func NewZapLoggerFrom(base *zap.Logger, level LogLevel) *ZapLogger {
	atomic := zap.NewAtomicLevelAt(level.zapLevel())
	return &ZapLogger{
		level:  level,
		atomic: atomic,
		sugar:  zap.New(levelCore{Core: base.Core(), level: atomic}, zap.AddCallerSkip(1)).Sugar(),
		base:   base,
	}
}

// Zap 返回底层 zap.Logger
func (l *ZapLogger) Zap() *zap.Logger { return l.base }

// Sync 刷新缓冲
func (l *ZapLogger) Sync() error { return l.base.Sync() }

// SetLevel 设置日志级别
func (l *ZapLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.atomic.SetLevel(level.zapLevel())
}

// GetLevel 获取日志级别
func (l *ZapLogger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Debug 输出 DEBUG 级别日志
func (l *ZapLogger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info 输出 INFO 级别日志
func (l *ZapLogger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn 输出 WARN 级别日志
func (l *ZapLogger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error 输出 ERROR 级别日志
func (l *ZapLogger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// levelCore 在包装的 core 之上叠加可调的级别
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c levelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c levelCore) With(fields []zapcore.Field) zapcore.Core {
	return levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// NoOpLogger 空日志实现（用于禁用日志）
type NoOpLogger struct{}

// NewNoOpLogger 创建空日志
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(format string, args ...interface{}) {}
func (l *NoOpLogger) Info(format string, args ...interface{})  {}
func (l *NoOpLogger) Warn(format string, args ...interface{})  {}
func (l *NoOpLogger) Error(format string, args ...interface{}) {}
func (l *NoOpLogger) SetLevel(level LogLevel)                  {}
func (l *NoOpLogger) GetLevel() LogLevel                       { return LogInfo }

// FormatLogger adapts a Logger to the Errorf/Warningf/Infof/Debugf shape
// used by embedded stores such as badger. Infof is logged at debug level;
// trailing newlines are dropped and every line gets prefix.
type FormatLogger struct {
	logger Logger
	prefix string
}

// NewFormatLogger wraps logger; a nil logger discards everything
func NewFormatLogger(logger Logger, prefix string) *FormatLogger {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &FormatLogger{logger: logger, prefix: prefix}
}

func (l *FormatLogger) line(format string) string {
	return l.prefix + strings.TrimRight(format, "\n")
}

func (l *FormatLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(l.line(format), args...)
}

func (l *FormatLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(l.line(format), args...)
}

func (l *FormatLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(l.line(format), args...)
}

func (l *FormatLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(l.line(format), args...)
}
