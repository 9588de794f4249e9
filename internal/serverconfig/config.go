// Package serverconfig loads the store server's HCL configuration.
package serverconfig

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// GameSettings contains the table rules every room on this server uses
type GameSettings struct {
	StartingBalance int `hcl:"starting_balance,optional"`
	Decks           int `hcl:"decks,optional"`
	DealerDrawMs    int `hcl:"dealer_draw_ms,optional"`
	DealerResolveMs int `hcl:"dealer_resolve_ms,optional"`
}

// Default returns default server configuration
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Game: GameSettings{
			StartingBalance: 1000,
			Decks:           6,
			DealerDrawMs:    900,
			DealerResolveMs: 600,
		},
	}
}

// Load loads server configuration from an HCL file. A missing file
// yields the defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	def := Default()
	if config.Server.Address == "" {
		config.Server.Address = def.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = def.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = def.Server.LogLevel
	}
	if config.Game.StartingBalance == 0 {
		config.Game.StartingBalance = def.Game.StartingBalance
	}
	if config.Game.Decks == 0 {
		config.Game.Decks = def.Game.Decks
	}
	if config.Game.DealerDrawMs == 0 {
		config.Game.DealerDrawMs = def.Game.DealerDrawMs
	}
	if config.Game.DealerResolveMs == 0 {
		config.Game.DealerResolveMs = def.Game.DealerResolveMs
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.StartingBalance <= 0 {
		return fmt.Errorf("starting balance must be positive, got %d", c.Game.StartingBalance)
	}
	if c.Game.Decks < 1 || c.Game.Decks > 8 {
		return fmt.Errorf("decks must be between 1 and 8, got %d", c.Game.Decks)
	}
	if c.Game.DealerDrawMs < 0 || c.Game.DealerResolveMs < 0 {
		return fmt.Errorf("dealer delays must not be negative")
	}
	return nil
}

// ListenAddress returns the full host:port the server binds to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
