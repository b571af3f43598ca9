// Package logging builds the application logger: console output in the
// encoder fitting the environment, plus an optional rotating file sink.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	// Dev enables the human-readable console encoder and debug-level output.
	Dev bool
	// File, when set, adds a rotating JSON log file next to the console.
	File string
}

// New builds the logger. The caller owns Sync.
func New(cfg Config) *zap.Logger {
	level := zapcore.InfoLevel
	if cfg.Dev {
		level = zapcore.DebugLevel
	}

	var console zapcore.Core
	if cfg.Dev {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		console = zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	} else {
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		console = zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	}

	core := console
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core = zapcore.NewTee(console, zapcore.NewCore(enc, zapcore.AddSync(rotator), level))
	}

	return zap.New(core)
}
