package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger 全局日志实例
var Logger = log.Logger

// Config 日志配置
type Config struct {
	Level        string    `json:"level" yaml:"level"`                 // debug, info, warn, error
	Format       string    `json:"format" yaml:"format"`               // json 或 pretty
	TimeFormat   string    `json:"time_format" yaml:"time_format"`     // 时间戳格式
	ReportCaller bool      `json:"report_caller" yaml:"report_caller"` // 是否输出调用位置
	Output       io.Writer `json:"-" yaml:"-"`                         // 默认 os.Stdout
}

// New 按配置创建日志实例, 不修改全局状态
func New(config Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	if config.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: config.TimeFormat}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if config.ReportCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Init 初始化全局日志, 同时替换 zerolog 的全局 logger
func Init(config Config) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	Logger = New(config)
	log.Logger = Logger
}

// Component 返回带 component 字段的子日志
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event { return Logger.Debug() }

func Info() *zerolog.Event { return Logger.Info() }

func Warn() *zerolog.Event { return Logger.Warn() }

func Error() *zerolog.Event { return Logger.Error() }

// Fatal 记录后程序退出
func Fatal() *zerolog.Event { return Logger.Fatal() }

// Ctx 从上下文中获取日志记录器, 没有时返回禁用的 logger
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext 把全局日志记录器放入上下文
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}
