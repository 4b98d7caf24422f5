package gologger

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ZapLogger adapts a zap sugared logger to glog.Logger. Arguments are
// key/value pairs.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{sugar: logger.Sugar()}
}

func (l *ZapLogger) Trace(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *ZapLogger) Fatal(msg string, args ...any) { l.sugar.Fatalw(msg, args...) }

func (l *ZapLogger) WithContext(context.Context) glog.Logger {
	return l
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// ZapProvider hands out named children of one zap logger.
type ZapProvider struct {
	base *zap.Logger
}

func NewZapProvider(base *zap.Logger) *ZapProvider {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapProvider{base: base}
}

func (p *ZapProvider) GetLogger(name string) glog.Logger {
	if p == nil {
		return glog.Nop()
	}
	if name == "" {
		return NewZapLogger(p.base)
	}
	return NewZapLogger(p.base.Named(name))
}

// NewProductionProvider builds a JSON zap logger, or a development console
// logger when debug is set.
func NewProductionProvider(debug bool) (*ZapProvider, *zap.Logger, error) {
	var (
		base *zap.Logger
		err  error
	)
	if debug {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, err
	}
	return NewZapProvider(base), base, nil
}

var (
	_ glog.Logger         = (*ZapLogger)(nil)
	_ glog.LoggerProvider = (*ZapProvider)(nil)
)
