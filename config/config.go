package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rentpool/native/rental"
)

type Config struct {
	ListenAddress    string `toml:"ListenAddress"`
	RPCAddress       string `toml:"RPCAddress"`
	DataDir          string `toml:"DataDir"`
	Environment      string `toml:"Environment"`
	OwnerAddress     string `toml:"OwnerAddress"`
	CollectorAddress string `toml:"CollectorAddress"`
	ServiceManifest  string `toml:"ServiceManifest"`

	RPCRequestsPerMinute  float64 `toml:"RPCRequestsPerMinute"`
	ViewRequestsPerMinute float64 `toml:"ViewRequestsPerMinute"`

	Rental rental.Config `toml:"rental"`
}

// Load reads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = "0.0.0.0:8080"
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./rentpool-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if c.RPCRequestsPerMinute <= 0 {
		c.RPCRequestsPerMinute = 300
	}
	if c.ViewRequestsPerMinute <= 0 {
		c.ViewRequestsPerMinute = 600
	}
	c.Rental.EnsureDefaults()
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress is required")
	}
	if _, err := c.Rental.ParseCurve(); err != nil {
		return err
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: write default: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode default: %w", err)
	}
	return cfg, nil
}
