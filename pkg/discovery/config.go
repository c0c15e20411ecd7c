package discovery

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cascade-agent/pkg/confkit"
)

// Config configures the listing API client.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Chain      string        `yaml:"chain"`
	Limit      int           `yaml:"limit"`
	MaxRetries int           `yaml:"max_retries"`
	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open discovery config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	if err := confkit.DecodeYAML(r, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal discovery config: %w", err)
	}
	cfg.BaseURL = strings.TrimSpace(os.ExpandEnv(cfg.BaseURL))
	cfg.APIKey = strings.TrimSpace(os.ExpandEnv(cfg.APIKey))
	cfg.applyDefaults()
	d, err := confkit.ParseDuration("discovery timeout", cfg.TimeoutRaw, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("discovery config: %w", err)
	}
	cfg.Timeout = d
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("discovery config: base_url is required")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Chain == "" {
		c.Chain = "base"
	}
	if c.Limit <= 0 {
		c.Limit = 50
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
