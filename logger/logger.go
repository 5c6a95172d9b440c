// Package logger builds the zap loggers used across purchase-export.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger's output.
type Options struct {
	// JSON switches from human-readable console output to structured JSON.
	JSON bool
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File, when set, receives a copy of every entry.
	File string
	// Output overrides stdout; used by tests.
	Output io.Writer
}

// New builds a sugared logger. The returned close func syncs the logger
// and closes the log file, if any.
func New(opts Options) (*zap.SugaredLogger, func(), error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = l
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(opts.JSON), zapcore.AddSync(out), level)}

	var file *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create log dir for %s", opts.File)
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to open log file %s", opts.File)
		}
		file = f
		cores = append(cores, zapcore.NewCore(encoder(opts.JSON), zapcore.AddSync(f), level))
	}

	log := zap.New(zapcore.NewTee(cores...)).Sugar()
	closeFn := func() {
		_ = log.Sync()
		if file != nil {
			file.Close()
		}
	}
	return log, closeFn, nil
}

func encoder(json bool) zapcore.Encoder {
	if json {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	cfg.EncodeCaller = nil
	return zapcore.NewConsoleEncoder(cfg)
}

// ServiceLogFile returns logs/<name>.log next to the running executable,
// where the OS service writes its log.
func ServiceLogFile(name string) (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "failed to get executable path")
	}
	return filepath.Join(filepath.Dir(exePath), "logs", name+".log"), nil
}
