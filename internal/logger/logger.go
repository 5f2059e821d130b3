// Package logger provides structured logging using Zap.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init initializes the global logger for the given environment, level and
// encoding. An unknown level falls back to info.
func Init(env, level, encoding string) {
	once.Do(func() {
		cfg := newConfig(env, encoding)

		lvl := zapcore.InfoLevel
		if level != "" {
			if err := lvl.Set(strings.ToLower(level)); err != nil {
				lvl = zapcore.InfoLevel
			}
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}

		base, err := cfg.Build()
		if err != nil {
			base = zap.NewNop()
		}

		sugar = base.Sugar()
	})
}

// newConfig picks the zap preset for env. "production" uses the JSON
// encoder and anything else the console encoder, unless encoding names
// one of the two explicitly.
func newConfig(env, encoding string) zap.Config {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	switch strings.ToLower(encoding) {
	case "json", "console":
		cfg.Encoding = strings.ToLower(encoding)
	}
	return cfg
}

// Get returns the global sugared logger.
// If Init has not been called, it initializes a development logger.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development", "", "")
	}
	return sugar
}

// Named returns a child logger tagged with the component name.
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
