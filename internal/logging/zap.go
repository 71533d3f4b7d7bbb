package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the zap sink.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	File       string // empty writes to stdout
	MaxSizeMB  int
	MaxBackups int
}

// ZapLogger adapts a zap SugaredLogger. Its level can be changed at runtime.
type ZapLogger struct {
	s     *zap.SugaredLogger
	level zap.AtomicLevel
}

// New builds a zap logger from options. A non-empty File is rotated with lumberjack.
func New(opts Options) (*ZapLogger, error) {
	level := zap.NewAtomicLevel()
	if err := setLevel(level, opts.Level); err != nil {
		return nil, err
	}
	var sink io.Writer = os.Stdout
	if opts.File != "" {
		sink = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
	}
	return newZap(sink, opts.Format, level), nil
}

func newZap(sink io.Writer, format string, level zap.AtomicLevel) *ZapLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(format, "console") {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(sink), level)
	return &ZapLogger{s: zap.New(core).Sugar(), level: level}
}

// NewZapLogger wraps an existing sugared logger.
func NewZapLogger(s *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{s: s, level: zap.NewAtomicLevelAt(s.Level())}
}

func setLevel(level zap.AtomicLevel, name string) error {
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return fmt.Errorf("parse log level %q: %w", name, err)
	}
	return nil
}

// SetLevel changes the minimum level of this logger and its children.
func (z *ZapLogger) SetLevel(name string) error { return setLevel(z.level, name) }

// Level returns the current minimum level.
func (z *ZapLogger) Level() string { return z.level.Level().String() }

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error { return z.s.Sync() }

func (z *ZapLogger) Debug(_ context.Context, msg string, args ...any) { z.s.Debugw(msg, args...) }
func (z *ZapLogger) Info(_ context.Context, msg string, args ...any)  { z.s.Infow(msg, args...) }
func (z *ZapLogger) Warn(_ context.Context, msg string, args ...any)  { z.s.Warnw(msg, args...) }
func (z *ZapLogger) Error(_ context.Context, msg string, args ...any) { z.s.Errorw(msg, args...) }

func (z *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{s: z.s.With(args...), level: z.level}
}
