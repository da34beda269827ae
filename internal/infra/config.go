package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Secrets may be
// overridden through environment variables after the file is parsed.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode string `yaml:"mode"` // "paper" or "real"
	} `yaml:"trading"`

	DCA domain.DCAConfig `yaml:"dca"`

	API struct {
		Bybit struct {
			RestURL    string `yaml:"rest_url"`
			WSURL      string `yaml:"ws_url"`
			AccessKey  string `yaml:"access_key"`
			SecretKey  string `yaml:"secret_key"`
			Category   string `yaml:"category"` // e.g. "linear"
			RecvWindow int    `yaml:"recv_window_ms"`
		} `yaml:"bybit"`
	} `yaml:"api"`

	Monitor struct {
		SampleIntervalSec int     `yaml:"sample_interval_sec"`
		LoadThreshold     float64 `yaml:"load_threshold"`
		MetricsAddr       string  `yaml:"metrics_addr"`
	} `yaml:"monitor"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the yaml config file, applies environment
// overrides and validates eagerly. Construction fails on any invalid value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity. DCA parameter ranges are
// delegated to domain.DCAConfig.Validate.
func (c *Config) Validate() error {
	if err := c.DCA.Validate(); err != nil {
		return err
	}

	mode := strings.ToLower(c.Trading.Mode)
	if mode != "" && mode != "paper" && mode != "real" {
		return fmt.Errorf("unknown trading mode: %s", c.Trading.Mode)
	}

	if url := c.API.Bybit.WSURL; url != "" && !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return fmt.Errorf("invalid Bybit WS URL: %s", url)
	}

	if c.Monitor.SampleIntervalSec < 0 {
		return fmt.Errorf("monitor sample interval must not be negative")
	}
	if c.Monitor.LoadThreshold < 0 || c.Monitor.LoadThreshold > 100 {
		return fmt.Errorf("monitor load threshold must be within [0,100]")
	}

	return nil
}

// overrideWithEnv replaces secrets with environment values when present.
// Environment variables take priority over the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Bybit.SecretKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secret found in config file.")
		fmt.Println("   Recommendation: use LIQD_BYBIT_KEY / LIQD_BYBIT_SECRET instead.")
	}

	if key := os.Getenv("LIQD_BYBIT_KEY"); key != "" {
		cfg.API.Bybit.AccessKey = key
	}
	if secret := os.Getenv("LIQD_BYBIT_SECRET"); secret != "" {
		cfg.API.Bybit.SecretKey = secret
	}
}
