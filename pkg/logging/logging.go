// Package logging provides the engine's zap logger and log sanitization
// helpers for SQL and connection strings.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. Production config for deployed
// environments, development config (console encoder) for local runs.
func NewLogger(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Named("queryforge"), nil
}
