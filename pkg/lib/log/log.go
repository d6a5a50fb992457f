// Package log 提供 flightbus 统一日志接口
//
// 基于标准库 log/slog 封装。每个组件通过 Logger("core/sb") 取得
// LazyLogger，每次调用都从当前默认 handler 取值，因此可以在运行期
// 切换输出目标和级别。
//
// 环境变量：
//   - FLIGHTBUS_LOG_LEVEL: 子系统=级别,子系统=级别,默认级别
//     示例: core/sb=debug,app/to=warn,info
//   - FLIGHTBUS_LOG_FORMAT: text 或 json
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Options 日志配置
type Options struct {
	// Level 默认日志级别
	Level slog.Level

	// SubsystemLevels 各组件的日志级别，键为组件名
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format Format

	// Output 输出目标，nil 表示 stderr
	Output io.Writer
}

var (
	mu       sync.RWMutex
	levels   = map[string]slog.Level{}
	defLevel = slog.LevelInfo
)

// Setup 按配置重建默认 logger
func Setup(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	mu.Lock()
	defLevel = opts.Level
	levels = make(map[string]slog.Level, len(opts.SubsystemLevels))
	for k, v := range opts.SubsystemLevels {
		levels[k] = v
	}
	mu.Unlock()

	hopts := &slog.HandlerOptions{
		// handler 放行所有级别，由 LazyLogger 按组件过滤
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var h slog.Handler
	if opts.Format == FormatJSON {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}
	slog.SetDefault(slog.New(h))
}

// SetOutput 设置日志输出目标，保持当前级别配置
func SetOutput(w io.Writer) {
	mu.RLock()
	opts := Options{Level: defLevel, SubsystemLevels: levels, Output: w}
	mu.RUnlock()
	Setup(opts)
}

// SetLevel 设置默认日志级别
func SetLevel(level slog.Level) {
	mu.Lock()
	defLevel = level
	mu.Unlock()
}

// SetSubsystemLevel 设置单个组件的日志级别
func SetSubsystemLevel(component string, level slog.Level) {
	mu.Lock()
	levels[component] = level
	mu.Unlock()
}

func enabled(component string, level slog.Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	if l, ok := levels[component]; ok {
		return level >= l
	}
	return level >= defLevel
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
//	var logger = log.Logger("core/sb")
//	logger.Info("pipe created", "pipe", id)
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !enabled(l.component, level) {
		return
	}
	slog.Default().With("component", l.component).Log(ctx, level, msg, args...)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Enabled 检查组件是否启用指定级别
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return enabled(l.component, level)
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// ============================================================================
//                              环境变量
// ============================================================================

// OptionsFromEnv 从环境变量解析日志配置
func OptionsFromEnv() Options {
	opts := Options{
		Level:           slog.LevelInfo,
		SubsystemLevels: map[string]slog.Level{},
	}
	if s := os.Getenv("FLIGHTBUS_LOG_LEVEL"); s != "" {
		ParseLevelSpec(&opts, s)
	}
	if strings.EqualFold(os.Getenv("FLIGHTBUS_LOG_FORMAT"), "json") {
		opts.Format = FormatJSON
	}
	return opts
}

// ParseLevelSpec 解析 "子系统=级别,默认级别" 格式的级别配置
func ParseLevelSpec(opts *Options, spec string) {
	if opts.SubsystemLevels == nil {
		opts.SubsystemLevels = map[string]slog.Level{}
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(strings.TrimSpace(v)); ok {
				opts.SubsystemLevels[strings.TrimSpace(k)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			opts.Level = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func init() {
	Setup(OptionsFromEnv())
}
