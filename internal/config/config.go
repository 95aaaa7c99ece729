package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the file.
const (
	EnvToken = "HOLVI_TOKEN"
	EnvPool  = "HOLVI_POOL"
)

// Config represents the top-level holvi.yaml configuration.
type Config struct {
	API      APIConfig     `yaml:"api"`
	Client   ClientConfig  `yaml:"client"`
	Invoice  InvoiceConfig `yaml:"invoice"`
	Log      LogConfig     `yaml:"log"`
	AuditLog string        `yaml:"audit_log,omitempty"` // CSV path; empty disables
}

// APIConfig identifies the Holvi pool.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Pool    string `yaml:"pool"`
	Token   string `yaml:"token,omitempty"`
}

// ClientConfig controls the HTTP connection.
type ClientConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst"`
}

// InvoiceConfig holds defaults for invoices created from the CLI.
type InvoiceConfig struct {
	Currency string `yaml:"currency"`
	DueDays  int    `yaml:"due_days"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Load reads a holvi.yaml file from disk and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes a Config to a YAML file. The token is only readable by the owner.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a pool.
func Default(pool string) *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://holvi.com/api/",
			Pool:    pool,
		},
		Client: ClientConfig{
			Timeout:   30 * time.Second,
			RateLimit: 5,
			Burst:     5,
		},
		Invoice: InvoiceConfig{
			Currency: "EUR",
			DueDays:  14,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the fields needed to talk to Holvi.
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Pool == "" {
		errs = append(errs, errors.New("api.pool is required"))
	}
	if c.Client.RateLimit < 0 {
		errs = append(errs, errors.New("client.rate_limit must not be negative"))
	}
	if c.Invoice.DueDays < 0 {
		errs = append(errs, errors.New("invoice.due_days must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvPool); v != "" {
		c.API.Pool = v
	}
}
