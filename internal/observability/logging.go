// Package observability builds the server's loggers and holds its diagnostic
// counters.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/volleyball/internal/config"
)

// datagramSampling lets the first hundred identical entries per second through,
// then one in a hundred. A flood of malformed packets would otherwise swamp
// the json log.
var datagramSampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}

func zapConfigFor(format string) (zap.Config, error) {
	switch format {
	case "json":
		zc := zap.NewProductionConfig()
		zc.Sampling = datagramSampling
		return zc, nil
	case "console":
		return zap.NewDevelopmentConfig(), nil
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", format)
	}
}

// NewLogger returns the root logger; components take logger.Named children.
// Level and format are checked here as well as in config.Validate, so tools
// that build a LoggingConfig by hand get the same errors.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	zc, err := zapConfigFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// PlayerID tags an entry with a player.
func PlayerID(id uint64) zap.Field {
	return zap.Uint64("player_id", id)
}

// SessionID tags an entry with a session.
func SessionID(id uint64) zap.Field {
	return zap.Uint64("session_id", id)
}
