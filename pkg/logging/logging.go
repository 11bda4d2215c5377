// Package logging builds loggers of the service.
//
// Components take *log.Logger. Its output goes to a zap core, so it is structured in production.
package logging

import (
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel parses debug|info|warn|error. Empty is info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// New builds a zap logger.
//
// format is "json" (production) or "console" (development).
func New(level string, format string) (*zap.Logger, error) {
	lv, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lv)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// Std returns *log.Logger writing into z, with a "component" field.
//
// Lines are logged at info level.
func Std(z *zap.Logger, component string) *log.Logger {
	if component != "" {
		z = z.With(zap.String("component", component))
	}
	return zap.NewStdLog(z)
}

// Redirect makes the standard logger of "log" package write into z. It returns a func to undo.
func Redirect(z *zap.Logger) func() {
	return zap.RedirectStdLog(z)
}
