// Package logger wraps a zap SugaredLogger with key/value scrubbing for credentials and
// learner identifiers.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	scrub         *scrubber
}

// New builds a logger for mode: "prod"/"production" for JSON at info, "test" for console
// at warn without stacktraces, anything else for console at debug. LOG_LEVEL overrides
// the level outside of test mode.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(envLevel(zapcore.InfoLevel))
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		cfg.DisableStacktrace = true
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(envLevel(zapcore.DebugLevel))
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: z.Sugar(), scrub: scrubberFromEnv()}, nil
}

func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar(), scrub: &scrubber{}}
}

func envLevel(fallback zapcore.Level) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil || os.Getenv("LOG_LEVEL") == "" {
		return fallback
	}
	return lvl
}

func (l *Logger) Sync() {
	if l != nil && l.SugaredLogger != nil {
		_ = l.SugaredLogger.Sync()
	}
}

func (l *Logger) Debug(msg string, kv ...any) { l.SugaredLogger.Debugw(msg, l.scrub.pairs(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.SugaredLogger.Infow(msg, l.scrub.pairs(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.SugaredLogger.Warnw(msg, l.scrub.pairs(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.SugaredLogger.Errorw(msg, l.scrub.pairs(kv)...) }
func (l *Logger) Fatal(msg string, kv ...any) { l.SugaredLogger.Fatalw(msg, l.scrub.pairs(kv)...) }

func (l *Logger) With(kv ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.scrub.pairs(kv)...), scrub: l.scrub}
}
