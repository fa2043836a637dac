// Package logging wires the logr API used throughout the optimizer to a zap backend.
package logging

import (
	"context"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logger.V(...).
const (
	DEBUG = 1
	TRACE = 2
)

var base atomic.Pointer[logr.Logger]

func init() {
	discard := logr.Discard()
	base.Store(&discard)
}

// NewLogger builds a zap-backed logr.Logger. verbosity 0 logs info and above,
// DEBUG and TRACE enable the matching V-levels. development switches to the
// human-readable console encoder.
func NewLogger(verbosity int, development bool) (logr.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	// stdout carries the strategy report
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger installs a development logger at TRACE verbosity as the process default.
func NewTestLogger() logr.Logger {
	l, err := NewLogger(TRACE, true)
	if err != nil {
		l = logr.Discard()
	}
	SetLogger(l)
	return l
}

// SetLogger replaces the process default returned by FromContext when the context carries none.
func SetLogger(l logr.Logger) {
	base.Store(&l)
}

// FromContext returns the logger attached to ctx, or the process default.
func FromContext(ctx context.Context) logr.Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return l
	}
	return *base.Load()
}

// IntoContext attaches l to ctx.
func IntoContext(ctx context.Context, l logr.Logger) context.Context {
	return logr.NewContext(ctx, l)
}
