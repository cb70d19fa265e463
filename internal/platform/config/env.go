// Package config loads booking service configuration from the environment
// and provides the shared fatal-exit helper for its binaries.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from the LUMINA_-prefixed environment variables
// named by its `env` struct tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
