// Package logging constructs the zap logger used across every component.
package logging

import "go.uber.org/zap"

// New builds a production logger unless environment is "development", in
// which case it builds a human-readable development logger. Mirrors the
// teacher's environment-gated logger construction in cmd/main.go.
func New(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
