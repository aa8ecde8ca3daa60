package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *zap.SugaredLogger

// Init builds the global logger. Level is one of zap's textual levels
// ("debug", "info", ...); unknown values fall back to info. Production
// environments get JSON output, everything else the console encoder.
func Init(level, env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	global = logger.Sugar()
	return nil
}

// Get returns the global logger, building a development fallback if Init
// was never called (useful in tests).
func Get() *zap.SugaredLogger {
	if global == nil {
		logger, _ := zap.NewDevelopment(zap.AddCallerSkip(1))
		global = logger.Sugar()
	}
	return global
}

func Debugf(template string, args ...any) { Get().Debugf(template, args...) }
func Infof(template string, args ...any)  { Get().Infof(template, args...) }
func Warnf(template string, args ...any)  { Get().Warnf(template, args...) }
func Errorf(template string, args ...any) { Get().Errorf(template, args...) }

// Sync flushes buffered log entries.
func Sync() error {
	if global != nil {
		return global.Sync()
	}
	return nil
}
