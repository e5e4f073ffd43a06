package config

import "time"

// Config holds runtime settings for the authctl CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the TokenKeeper gRPC endpoint.
//   - StateFile: where the current token pair is kept. "~" expands to $HOME.
//   - RequestTimeout: deadline applied to each call.
type Config struct {
	ServerEndpointAddr string
	StateFile          string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.StateFile = "~/.tokenkeeper.json"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
