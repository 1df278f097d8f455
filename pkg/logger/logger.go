package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. Init must be called before use; packages
// that receive an explicit *zap.Logger should prefer that over this global.
var Log *zap.Logger

// Init configures the global logger. The level argument wins; when empty,
// the CHAT_LOG_LEVEL environment variable is consulted, defaulting to info.
func Init(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_LOG_LEVEL")))
	}

	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	l, err := cfg.Build()
	if err != nil {
		// Production config only fails on bad sink paths; fall back to a
		// no-op logger rather than crash the host application.
		l = zap.NewNop()
	}
	Log = l
}

// Sync flushes buffered log entries. Safe to call with a nil global.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
