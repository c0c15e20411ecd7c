package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"cascade-agent/pkg/confkit"
)

// Config lists the price sources available to the agent.
type Config struct {
	Default   string                     `yaml:"default"`
	Track     []string                   `yaml:"track"`
	History   HistoryConfig              `yaml:"history"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// HistoryConfig sizes the in-memory history used when no database is wired.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// ProviderConfig configures one price source.
type ProviderConfig struct {
	Type       string             `yaml:"type"`
	BaseURL    string             `yaml:"base_url"`
	APIKey     string             `yaml:"api_key"`
	Currency   string             `yaml:"currency"`
	IDs        map[string]string  `yaml:"ids"`
	Prices     map[string]float64 `yaml:"prices"`
	MaxRetries int                `yaml:"max_retries"`
	TimeoutRaw string             `yaml:"timeout"`
	Timeout    time.Duration      `yaml:"-"`
}

// SourceBuilder constructs a PriceSource from configuration.
type SourceBuilder func(name string, cfg *ProviderConfig) (PriceSource, error)

var (
	sourceRegistry   = make(map[string]SourceBuilder)
	sourceRegistryMu sync.RWMutex
)

func init() {
	RegisterSource("static", func(_ string, cfg *ProviderConfig) (PriceSource, error) {
		if len(cfg.Prices) == 0 {
			return nil, fmt.Errorf("static source needs prices")
		}
		prices := make(StaticPrices, len(cfg.Prices))
		for id, px := range cfg.Prices {
			prices[strings.ToUpper(id)] = px
		}
		return prices, nil
	})
}

// RegisterSource registers a price source constructor under typeName.
func RegisterSource(typeName string, builder SourceBuilder) {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	sourceRegistry[normaliseType(typeName)] = builder
}

func lookupSource(typeName string) (SourceBuilder, bool) {
	sourceRegistryMu.RLock()
	defer sourceRegistryMu.RUnlock()
	b, ok := sourceRegistry[normaliseType(typeName)]
	return b, ok
}

func normaliseType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	var cfg Config
	if err := confkit.DecodeYAML(r, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, p := range c.Providers {
		if p == nil {
			p = &ProviderConfig{}
			c.Providers[name] = p
		}
		p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
		p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
		p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
		d, err := confkit.ParseDuration("market provider "+name+" timeout", strings.TrimSpace(os.ExpandEnv(p.TimeoutRaw)), 8*time.Second)
		if err != nil {
			return err
		}
		p.Timeout = d
	}
	if c.Default == "" && len(c.Providers) == 1 {
		for name := range c.Providers {
			c.Default = name
		}
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("market config: providers cannot be empty")
	}
	if _, ok := c.Providers[c.Default]; !ok {
		return fmt.Errorf("market config: default provider %q not defined", c.Default)
	}
	for name, p := range c.Providers {
		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("market config: provider %s must specify type", name)
		}
		if _, ok := lookupSource(p.Type); !ok {
			return fmt.Errorf("market config: provider %s has unsupported type %q", name, p.Type)
		}
	}
	return nil
}

// BuildSource instantiates the default price source.
func (c *Config) BuildSource() (PriceSource, error) {
	p := c.Providers[c.Default]
	builder, ok := lookupSource(p.Type)
	if !ok {
		return nil, fmt.Errorf("market provider %s: unsupported type %q", c.Default, p.Type)
	}
	src, err := builder(c.Default, p)
	if err != nil {
		return nil, fmt.Errorf("market provider %s: %w", c.Default, err)
	}
	return src, nil
}
