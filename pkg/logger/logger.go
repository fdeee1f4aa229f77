package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The root logger starts as a nop so packages can log before Init runs,
// which matters mostly in tests.
var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init replaces the root logger with a production JSON logger at the given
// level. Unrecognised level strings fall back to info.
func Init(level string) error {
	parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	root = built
	mu.Unlock()
	return nil
}

// Logger returns the current root logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// WithModule returns a child logger tagged with the owning module, the
// convention every package here logs through.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Sync flushes any buffered entries. Called once on shutdown.
func Sync() error {
	return Logger().Sync()
}
