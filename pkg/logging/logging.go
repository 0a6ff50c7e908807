// Package logging backs the service's ectologger.Logger with zap.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	levelKeys   = []string{"level", "severity"}
	messageKeys = []string{"message", "msg"}
)

// NewZap builds the process logger. Pretty selects the console encoder used for local runs.
func NewZap(level string, pretty bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	return cfg.Build()
}

// New returns an ectologger.Logger that writes every entry through zl.
func New(zl *zap.Logger) ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		level, message, fields := Split(msg)
		if ce := zl.Check(level, message); ce != nil {
			ce.Write(fields...)
		}
	})
}

// Split flattens a log entry into a zap level, message and fields.
func Split(entry any) (zapcore.Level, string, []zap.Field) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return zapcore.InfoLevel, fmt.Sprint(entry), nil
	}
	values := map[string]any{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return zapcore.InfoLevel, string(raw), nil
	}

	level := zapcore.InfoLevel
	if v, ok := take(values, levelKeys); ok {
		level = ParseLevel(fmt.Sprint(v))
	}
	message := ""
	if v, ok := take(values, messageKeys); ok {
		message = fmt.Sprint(v)
	}

	fields := make([]zap.Field, 0, len(values))
	for k, v := range values {
		if nested, ok := v.(map[string]any); ok && strings.EqualFold(k, "fields") {
			for nk, nv := range nested {
				fields = append(fields, zap.Any(nk, nv))
			}
			continue
		}
		if v == nil {
			continue
		}
		fields = append(fields, zap.Any(strings.ToLower(k), v))
	}
	return level, message, fields
}

// ParseLevel maps a level name onto zap, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "panic":
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// take removes and returns the first key matching one of names, ignoring case.
func take(values map[string]any, names []string) (any, bool) {
	for k, v := range values {
		for _, name := range names {
			if strings.EqualFold(k, name) {
				delete(values, k)
				return v, true
			}
		}
	}
	return nil, false
}
