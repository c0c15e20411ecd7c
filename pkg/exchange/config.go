package exchange

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"cascade-agent/pkg/confkit"
)

// Config captures configuration for one or more venues.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes how to construct a specific venue instance.
type ProviderConfig struct {
	Type       string `yaml:"type"`
	BaseURL    string `yaml:"base_url"`
	PrivateKey string `yaml:"private_key"`
	Account    string `yaml:"account"`
	ChainID    int64  `yaml:"chain_id"`
	MaxRetries int    `yaml:"max_retries"`

	// Paper venue settings.
	InitialBalances map[string]float64 `yaml:"initial_balances"`
	FeeBps          float64            `yaml:"fee_bps"`
	SlippageBps     float64            `yaml:"slippage_bps"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider associates a builder with a venue type.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[normaliseType(typeName)] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[normaliseType(typeName)]
	return builder, ok
}

func normaliseType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GetProvider constructs a single provider of typeName without a full
// config file.
func GetProvider(typeName string, cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		cfg = &ProviderConfig{}
	}
	cp := *cfg
	cp.Type = typeName
	if err := cp.validate("inline"); err != nil {
		return nil, err
	}
	builder, _ := lookupProviderBuilder(cp.Type)
	return builder("inline", &cp)
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exchange config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	if err := confkit.DecodeYAML(r, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal exchange config: %w", err)
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
		p.expandEnv()
		d, err := confkit.ParseDuration("timeout", p.TimeoutRaw, 0)
		if err != nil {
			return fmt.Errorf("exchange provider %s: %w", name, err)
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

func (p *ProviderConfig) expandEnv() {
	p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.PrivateKey = strings.TrimSpace(os.ExpandEnv(p.PrivateKey))
	p.Account = strings.TrimSpace(os.ExpandEnv(p.Account))
	p.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.TimeoutRaw))
}

// Validate ensures all providers have sane configuration.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("exchange config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("exchange config: default provider %q not defined", c.Default)
		}
	}
	for name, p := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("exchange config: provider name cannot be empty")
		}
		if err := p.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("exchange config: provider %s is nil", name)
	}
	if p.Type == "" {
		return fmt.Errorf("exchange config: provider %s must specify type", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("exchange config: provider %s has unsupported type %q", name, p.Type)
	}
	if p.FeeBps < 0 || p.SlippageBps < 0 {
		return fmt.Errorf("exchange config: provider %s fee_bps and slippage_bps must be non-negative", name)
	}
	if normaliseType(p.Type) == "venue" {
		if p.PrivateKey == "" {
			return fmt.Errorf("exchange config: provider %s requires private_key", name)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("exchange config: provider %s requires base_url", name)
		}
	}
	return nil
}

// BuildProviders instantiates every configured venue.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, pc := range c.Providers {
		builder, ok := lookupProviderBuilder(pc.Type)
		if !ok {
			return nil, fmt.Errorf("exchange provider %s: unsupported type %q", name, pc.Type)
		}
		provider, err := builder(name, pc)
		if err != nil {
			return nil, fmt.Errorf("exchange provider %s: %w", name, err)
		}
		result[name] = provider
	}
	return result, nil
}

// BuildDefault instantiates the default venue, or the alphabetically first
// one when no default is set.
func (c *Config) BuildDefault() (Provider, error) {
	name := c.Default
	if name == "" {
		names := make([]string, 0, len(c.Providers))
		for n := range c.Providers {
			names = append(names, n)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return nil, fmt.Errorf("exchange config: providers cannot be empty")
		}
		name = names[0]
	}
	pc, ok := c.Providers[name]
	if !ok {
		return nil, fmt.Errorf("exchange config: default provider %q not defined", name)
	}
	builder, ok := lookupProviderBuilder(pc.Type)
	if !ok {
		return nil, fmt.Errorf("exchange provider %s: unsupported type %q", name, pc.Type)
	}
	p, err := builder(name, pc)
	if err != nil {
		return nil, fmt.Errorf("exchange provider %s: %w", name, err)
	}
	return p, nil
}
