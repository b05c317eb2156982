// Package logx 构建注入到各组件的 zerolog.Logger。
// 组件只接收 Logger，不读取全局 logger，单元测试可直接传入 zerolog.Nop()。
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New 根据级别与格式创建 Logger。
// format: "json"（默认，生产）或 "console"（本地开发，带颜色）。
func New(level, format string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter 与 New 相同，但写入指定 writer。
func NewWithWriter(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("app", "fraudkit").
		Logger()
}

// Component 返回带 component 字段的子 Logger。
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
