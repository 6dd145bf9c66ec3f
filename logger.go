package auth

import (
	"go.uber.org/zap"
)

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to Logger.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLogger{sugar: logger.Sugar()}
}

func (l *zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

type zapProvider struct {
	base *zap.Logger
}

// NewZapProvider returns a LoggerProvider that names child loggers.
func NewZapProvider(logger *zap.Logger) LoggerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapProvider{base: logger}
}

func (p *zapProvider) GetLogger(name string) Logger {
	if name == "" {
		return NewZapLogger(p.base)
	}
	return NewZapLogger(p.base.Named(name))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

func defaultLogger(name string) Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return NopLogger()
	}
	return NewZapLogger(logger.Named(name))
}

// ResolveLogger picks the explicit logger, then the provider, then the default.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	if logger != nil {
		return logger
	}
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return l
		}
	}
	return defaultLogger(name)
}
