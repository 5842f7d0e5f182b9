// Package log holds the process-wide zap logger used by pools and buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package log

import (
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = atomic.NewPointer(zap.NewNop())

// L returns the current logger. It is never nil.
func L() *zap.Logger {
	return logger.Load()
}

// SetLogger installs l as the process logger. Nil reverts to a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// NewProduction builds a JSON logger at the named level ("debug", "info", ...).
func NewProduction(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
