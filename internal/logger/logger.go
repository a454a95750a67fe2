// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Config for New
type Config struct {
	Level  string    // debug, info, error; falls back to LOG_LEVEL, then info
	Format string    // "json" or "console"
	Output io.Writer // defaults to os.Stderr
}

type defaultLogger struct {
	log zerolog.Logger
}

// New creates a Logger tagging every entry with the given component
func New(component string, config Config) Logger {
	level := zerolog.InfoLevel
	name := config.Level
	if name == "" {
		name = os.Getenv("LOG_LEVEL")
	}
	if name != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
			level = parsed
		}
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	if config.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(level).With().Timestamp()
	if component != "" {
		l = l.Str("component", component)
	}
	return &defaultLogger{log: l.Logger()}
}

// Nop returns a Logger that discards everything
func Nop() Logger {
	return &defaultLogger{log: zerolog.Nop()}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.log.Info().Msgf(format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}
