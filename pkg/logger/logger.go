package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/goid"
)

const timeLayout = "2006-01-02 15:04:05.000 -07:00"

var (
	baseLogger       *zap.Logger
	defaultComponent string
	mu               sync.RWMutex
)

// ParseLevel 将配置中的级别字符串转换为 zapcore.Level，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger 初始化全局日志：控制台（彩色或JSON）+ 按天切割的 JSON 文件
func InitLogger(cfg *config.ZapLogConfig) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", cfg.Path, err)
	}

	writer, err := rotatelogs.New(
		filepath.Join(cfg.Path, "telemetry-agent-%Y%m%d.log"),
		rotationOptions(cfg)...,
	)
	if err != nil {
		return nil, fmt.Errorf("create rotate writer: %w", err)
	}

	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.TimeKey = "timestamp"
	jsonCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(timeLayout))
	}
	jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	stdoutEncoder := zapcore.NewJSONEncoder(jsonCfg)
	if cfg.Format == "console" {
		stdoutEncoder = zapcore.NewConsoleEncoder(consoleEncoderConfig())
	}

	core := zapcore.NewTee(
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), zapcore.AddSync(writer), level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	baseLogger = l
	mu.Unlock()
	return l, nil
}

// rotatelogs 的 MaxAge 与 RotationCount 互斥，max_age 为 0 时才按备份数保留
func rotationOptions(cfg *config.ZapLogConfig) []rotatelogs.Option {
	opts := []rotatelogs.Option{
		rotatelogs.WithRotationTime(24 * time.Hour),
		rotatelogs.WithRotationSize(int64(cfg.MaxSize) * 1024 * 1024),
	}
	if cfg.MaxAge > 0 {
		opts = append(opts, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour))
	} else if cfg.MaxBackup > 0 {
		opts = append(opts, rotatelogs.WithRotationCount(uint(cfg.MaxBackup)))
	}
	return opts
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.ConsoleSeparator = " "
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format(timeLayout)))
	}
	encCfg.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		var levelStr string
		switch level {
		case zapcore.DebugLevel:
			levelStr = "\033[36mDEBUG\033[0m"
		case zapcore.InfoLevel:
			levelStr = "\033[32mINFO \033[0m"
		case zapcore.WarnLevel:
			levelStr = "\033[33mWARN \033[0m"
		case zapcore.ErrorLevel:
			levelStr = "\033[31mERROR\033[0m"
		default:
			levelStr = "\033[35m" + level.CapitalString() + "\033[0m"
		}
		enc.AppendString(levelStr)
	}
	// Caller 两级路径
	encCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return encCfg
}

// SetDefaultComponent 设置包级日志函数附带的 component 字段
func SetDefaultComponent(component string) {
	mu.Lock()
	defer mu.Unlock()
	defaultComponent = component
}

// GetGlobalLogger 返回全局 logger；未初始化时返回 zap 全局 logger（默认 no-op）
func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if baseLogger == nil {
		return zap.L()
	}
	return baseLogger
}

// Named 返回带 component 字段的子 logger，用于注入各组件
func Named(component string) *zap.Logger {
	return GetGlobalLogger().With(zap.String("component", component))
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	mu.RLock()
	component := defaultComponent
	mu.RUnlock()

	l := GetGlobalLogger().WithOptions(zap.AddCallerSkip(2))
	if ce := l.Check(level, msg); ce != nil {
		merged := make([]zapcore.Field, 0, len(fields)+2)
		if component != "" {
			merged = append(merged, zap.String("component", component))
		}
		merged = append(merged, zap.Uint64("goid", goid.GetGID()))
		ce.Write(append(merged, fields...)...)
	}
}

func Debug(msg string, fields ...zapcore.Field) { log(zap.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zapcore.Field)  { log(zap.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { log(zap.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { log(zap.ErrorLevel, msg, fields...) }

// Sync 刷盘，忽略 stdout 不支持 fsync 的错误
func Sync() error {
	mu.RLock()
	l := baseLogger
	mu.RUnlock()
	if l == nil {
		return nil
	}
	if err := l.Sync(); err != nil && !strings.Contains(err.Error(), "/dev/stdout") {
		return err
	}
	return nil
}
