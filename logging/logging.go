// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options holds logger configuration
type Options struct {
	Level   string    // debug, info, warn or error; empty means info
	File    string    // rotating JSON log file, disabled when empty
	Debug   bool      // forces debug level and caller annotations
	Console io.Writer // defaults to os.Stderr
}

// ParseLevel accepts the level names understood by zap.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(s)
}

// New returns a logger writing human readable lines to the console and, when
// opts.File is set, JSON lines to a size-rotated file. The returned func
// flushes and closes both sinks.
func New(opts Options) (*zap.SugaredLogger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(zapcore.AddSync(console)), level),
	}

	var fileWriter *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		fileWriter = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	zopts := []zap.Option{}
	if opts.Debug {
		zopts = append(zopts, zap.AddCaller())
	}
	log := zap.New(zapcore.NewTee(cores...), zopts...)

	cleanup := func() {
		_ = log.Sync()
		if fileWriter != nil {
			_ = fileWriter.Close()
		}
	}
	return log.Sugar(), cleanup, nil
}
