// Package config assembles process configuration from environment
// variables. Flags override whatever the environment provides.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Runtime is the process-level configuration for the serving commands.
type Runtime struct {
	Port        int    `env:"WARDEN_PORT" envDefault:"8787"`
	ProxyPort   int    `env:"WARDEN_PROXY_PORT" envDefault:"8788"`
	AtlasDir    string `env:"WARDEN_ATLAS_DIR"`
	PolicyPath  string `env:"WARDEN_POLICY"`
	GenesisSeed string `env:"WARDEN_GENESIS_SEED"`
	QueueSize   int    `env:"WARDEN_QUEUE_SIZE" envDefault:"256"`
}

// FromEnv parses the WARDEN_* environment into a Runtime value.
func FromEnv() (Runtime, error) {
	var cfg Runtime
	if err := env.Parse(&cfg); err != nil {
		return Runtime{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
