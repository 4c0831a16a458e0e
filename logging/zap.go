package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level       string      `yaml:"level"`
	Development bool        `yaml:"development"`
	Console     bool        `yaml:"console"`
	OutputPaths []string    `yaml:"outputPaths"`
	Rotation    LogRotation `yaml:"rotation"`
}

type LogRotation struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"maxSizeMB"`
	MaxBackups int  `yaml:"maxBackups"`
	MaxAgeDays int  `yaml:"maxAgeDays"`
	Compress   bool `yaml:"compress"`
}

// ZapLogger adapts a *zap.SugaredLogger to Logger.
type ZapLogger struct {
	l *zap.SugaredLogger
}

func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{l: l.Sugar()}
}

// New builds a zap logger from cfg. Console output is JSON on stdout unless
// Development is set; file outputs are JSON and rotate through lumberjack
// when Rotation.Enabled is true.
func New(cfg Config) (*ZapLogger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var cores []zapcore.Core
	if cfg.Console || cfg.Development || len(cfg.OutputPaths) == 0 {
		enc := zapcore.NewJSONEncoder(encCfg)
		if cfg.Development {
			devCfg := encCfg
			devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			enc = zapcore.NewConsoleEncoder(devCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level))
	}

	for _, path := range cfg.OutputPaths {
		if path == "stdout" || path == "stderr" {
			continue
		}
		var ws zapcore.WriteSyncer
		if cfg.Rotation.Enabled {
			ws = zapcore.AddSync(&lumberjack.Logger{
				Filename:   path,
				MaxSize:    cfg.Rotation.MaxSizeMB,
				MaxBackups: cfg.Rotation.MaxBackups,
				MaxAge:     cfg.Rotation.MaxAgeDays,
				Compress:   cfg.Rotation.Compress,
			})
		} else {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %q: %w", path, err)
			}
			ws = zapcore.AddSync(f)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.ErrorLevel))
	return NewZapLogger(l), nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func (z *ZapLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.l.Debugw(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) Info(ctx context.Context, msg string, args ...any) {
	z.l.Infow(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.l.Warnw(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) Error(ctx context.Context, msg string, args ...any) {
	z.l.Errorw(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{l: z.l.With(args...)}
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	return z.l.Sync()
}

func withContext(ctx context.Context, args []any) []any {
	f := fieldsFromContext(ctx)
	if len(f) == 0 {
		return args
	}
	out := make([]any, 0, len(f)+len(args))
	out = append(out, f...)
	return append(out, args...)
}
