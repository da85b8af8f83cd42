// internal/runtime/config.go
package runtime

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Config carries the credential set and endpoints, taken from the
// environment so tokens and tenant ids never appear on the command line.
type Config struct {
	TenantID string `env:"MAILREAPER_TENANT_ID,required"`
	ClientID string `env:"MAILREAPER_CLIENT_ID,required"`

	GraphURL  string `env:"MAILREAPER_GRAPH_URL" envDefault:"https://graph.microsoft.com/v1.0"`
	SearchURL string `env:"MAILREAPER_SEARCH_URL" envDefault:"https://graph.microsoft.com/v1.0/security"`
}

// LoadConfig reads and validates the environment. Failures here happen
// before any remote call is made.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("load environment config: %w", err)
	}
	return cfg, nil
}
