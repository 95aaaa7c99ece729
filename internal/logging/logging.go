package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/holvikit/holvi/internal/config"
)

// Config builds the zap configuration for cfg. Output goes to stderr so that
// command output on stdout stays machine readable.
func Config(cfg config.LogConfig) (zap.Config, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return zap.Config{}, fmt.Errorf("log level: %w", err)
		}
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zc.Sampling = nil
	}
	zc.Level.SetLevel(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc, nil
}

// New returns a logger configured from cfg.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zc, err := Config(cfg)
	if err != nil {
		return nil, err
	}
	l, err := zc.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}
