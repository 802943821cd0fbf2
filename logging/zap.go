// Package logging adapts zap to the auth.Logger interface.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap is an auth.Logger backed by a zap SugaredLogger. Arguments after the
// message are key/value pairs.
type Zap struct {
	z *zap.SugaredLogger
}

// NewZap wraps l.
func NewZap(l *zap.Logger) *Zap {
	return &Zap{z: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// New builds a JSON production logger at level, or a console development
// logger when dev is set.
func New(level string, dev bool) (*Zap, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZap(l), nil
}

func (l *Zap) Debug(msg string, args ...any) {
	l.z.Debugw(msg, args...)
}

func (l *Zap) Info(msg string, args ...any) {
	l.z.Infow(msg, args...)
}

func (l *Zap) Warn(msg string, args ...any) {
	l.z.Warnw(msg, args...)
}

func (l *Zap) Error(msg string, args ...any) {
	l.z.Errorw(msg, args...)
}

// With returns a logger that adds the key/value pairs to every entry.
func (l *Zap) With(args ...any) *Zap {
	return &Zap{z: l.z.With(args...)}
}

// Sync flushes buffered entries.
func (l *Zap) Sync() error {
	return l.z.Sync()
}
