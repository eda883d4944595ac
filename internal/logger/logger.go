// Package logger builds the process zap logger from configuration.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newthinker/strategylab/internal/config"
)

// New builds a logger for cfg. Output goes to stderr so that command
// output on stdout stays machine readable. cfg.File, when set, receives a
// copy of every entry.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
		if cfg.Encoding == "json" {
			// color codes corrupt JSON values
			zc.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		}
	}

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}
	return zc.Build()
}

// Debug returns a development logger at debug level, used by --debug.
func Debug() *zap.Logger {
	log, err := New(config.LogConfig{Level: "debug", Development: true, Encoding: "console"})
	if err != nil {
		panic(err)
	}
	return log
}
