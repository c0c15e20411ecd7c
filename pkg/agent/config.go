package agent

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cascade-agent/pkg/confkit"
)

const (
	defaultInterval     = time.Minute
	defaultCycleTimeout = 2 * time.Minute
	defaultRiskTier     = "standard"
)

// Config controls the cycle loop.
type Config struct {
	IntervalRaw     string        `yaml:"interval"`
	Interval        time.Duration `yaml:"-"`
	CycleTimeoutRaw string        `yaml:"cycle_timeout"`
	CycleTimeout    time.Duration `yaml:"-"`
	StartPaused     bool          `yaml:"start_paused"`
	RiskTier        string        `yaml:"risk_tier"`
	Journal         JournalConfig `yaml:"journal"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// DefaultConfig is used when no agent section is configured.
func DefaultConfig() *Config {
	return &Config{
		IntervalRaw:     defaultInterval.String(),
		Interval:        defaultInterval,
		CycleTimeoutRaw: defaultCycleTimeout.String(),
		CycleTimeout:    defaultCycleTimeout,
		RiskTier:        defaultRiskTier,
	}
}

// LoadConfig reads configuration from disk. A relative journal dir is
// resolved against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open agent config: %w", err)
	}
	defer file.Close()
	cfg, err := LoadConfigFromReader(file)
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Dir != "" {
		cfg.Journal.Dir = confkit.ResolvePath(confkit.BaseDir(path), cfg.Journal.Dir)
	}
	return cfg, nil
}

// MustLoad reads etc/agent.yaml from the project root and panics on error.
func MustLoad() *Config {
	cfg, err := LoadConfig(confkit.MustProjectPath("etc/agent.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	if err := confkit.DecodeYAML(r, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal agent config: %w", err)
	}
	var err error
	if cfg.Interval, err = confkit.ParseDuration("interval", cfg.IntervalRaw, defaultInterval); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	if cfg.CycleTimeout, err = confkit.ParseDuration("cycle_timeout", cfg.CycleTimeoutRaw, defaultCycleTimeout); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	cfg.RiskTier = strings.TrimSpace(cfg.RiskTier)
	cfg.Journal.Dir = strings.TrimSpace(os.ExpandEnv(cfg.Journal.Dir))
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RiskTier == "" {
		c.RiskTier = defaultRiskTier
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		c.Journal.Dir = "journal"
	}
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("agent config: interval must be positive")
	}
	if c.CycleTimeout <= 0 {
		return errors.New("agent config: cycle_timeout must be positive")
	}
	return nil
}
