// Package logging builds the zap.Logger shared by both process roles, the
// same way the teacher's cmd/*/main.go files do it (SPEC_FULL §10.1).
package logging

import (
	"go.uber.org/zap"
)

// Build constructs a zap.Logger at the given level ("debug", "info", "warn",
// or "error"; anything else falls back to "info"). Debug uses zap's
// development config (console-friendly, caller-annotated); everything else
// uses the production JSON config.
func Build(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
