package advisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cascade-agent/pkg/confkit"
)

// Config controls the advisory collaborator.
type Config struct {
	Model              string        `yaml:"model"`
	Temperature        *float64      `yaml:"temperature,omitempty"`
	PromptTemplate     string        `yaml:"prompt_template"`
	MinConfidence      float64       `yaml:"min_confidence"`
	MaxTradeFraction   float64       `yaml:"max_trade_fraction"`
	DecisionTimeoutRaw string        `yaml:"decision_timeout"`
	DecisionTimeout    time.Duration `yaml:"-"`
}

// LoadConfig reads configuration from disk. A relative prompt_template is
// resolved against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open advisor config: %w", err)
	}
	defer file.Close()
	cfg, err := LoadConfigFromReader(file)
	if err != nil {
		return nil, err
	}
	if cfg.PromptTemplate != "" {
		cfg.PromptTemplate = confkit.ResolvePath(confkit.BaseDir(path), cfg.PromptTemplate)
	}
	return cfg, nil
}

// MustLoad reads etc/advisor.yaml from the project root and panics on error.
func MustLoad() *Config {
	cfg, err := LoadConfig(confkit.MustProjectPath("etc/advisor.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	if err := confkit.DecodeYAML(r, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal advisor config: %w", err)
	}
	cfg.Model = strings.TrimSpace(os.ExpandEnv(cfg.Model))
	cfg.PromptTemplate = strings.TrimSpace(cfg.PromptTemplate)
	d, err := confkit.ParseDuration("decision_timeout", cfg.DecisionTimeoutRaw, defaultDecisionTimeout)
	if err != nil {
		return nil, fmt.Errorf("advisor config: %w", err)
	}
	cfg.DecisionTimeout = d
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const (
	defaultDecisionTimeout  = 45 * time.Second
	defaultMaxTradeFraction = 0.25
)

func (c *Config) applyDefaults() {
	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = defaultDecisionTimeout
	}
	if c.MaxTradeFraction == 0 {
		c.MaxTradeFraction = defaultMaxTradeFraction
	}
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("advisor config: min_confidence must be between 0 and 1")
	}
	if c.MaxTradeFraction < 0 || c.MaxTradeFraction > 1 {
		return errors.New("advisor config: max_trade_fraction must be between 0 and 1")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return errors.New("advisor config: temperature must be between 0 and 2")
	}
	return nil
}
