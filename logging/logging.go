// Package logging defines the structured logger facade used throughout the
// consensus core, shaped after the teacher lineage's geth-style
// github.com/luxfi/log interface (With/Debug/Info/Warn/Error with variadic
// key-value context) and backed by github.com/luxfi/zap.
package logging

import (
	luxzap "github.com/luxfi/zap"
)

// Logger is the structured logging facade every consensus-core component
// takes through its constructor rather than reaching for a package-level
// global.
type Logger interface {
	With(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

// zapLogger adapts luxzap's sugared logger to Logger.
type zapLogger struct {
	sugar *luxzap.SugaredLogger
}

// New builds a production Logger backed by luxfi/zap.
func New() Logger {
	l, err := luxzap.NewProduction()
	if err != nil {
		l = luxzap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) With(ctx ...interface{}) Logger {
	return &zapLogger{sugar: z.sugar.With(ctx...)}
}

func (z *zapLogger) Debug(msg string, ctx ...interface{}) { z.sugar.Debugw(msg, ctx...) }
func (z *zapLogger) Info(msg string, ctx ...interface{})  { z.sugar.Infow(msg, ctx...) }
func (z *zapLogger) Warn(msg string, ctx ...interface{})  { z.sugar.Warnw(msg, ctx...) }
func (z *zapLogger) Error(msg string, ctx ...interface{}) { z.sugar.Errorw(msg, ctx...) }

// NoOp is a logger that discards everything, used in tests the way the
// teacher lineage uses log.NewNoOpLogger().
type NoOp struct{}

func NewNoOp() Logger { return NoOp{} }

func (NoOp) With(ctx ...interface{}) Logger          { return NoOp{} }
func (NoOp) Debug(msg string, ctx ...interface{}) {}
func (NoOp) Info(msg string, ctx ...interface{})  {}
func (NoOp) Warn(msg string, ctx ...interface{})  {}
func (NoOp) Error(msg string, ctx ...interface{}) {}
