// Package config loads the YAML configuration and turns it into the typed
// configs each component receives. Validation happens once, in Load.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/exchange"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/logger"
	"github.com/vitos/crypto_reentry_chain/internal/infrastructure/storage"
	"github.com/vitos/crypto_reentry_chain/internal/usecase"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type Config struct {
	Exchange    ExchangeConfig        `yaml:"exchange"`
	Storage     StorageConfig         `yaml:"storage"`
	Logging     LoggingConfig         `yaml:"logging"`
	Server      ServerConfig          `yaml:"server"`
	Monitor     MonitorConfig         `yaml:"monitor"`
	Account     AccountConfig         `yaml:"account"`
	Chain       ChainSection          `yaml:"chain"`
	Sizing      domain.SizingConfig   `yaml:"sizing"`
	Risk        domain.RiskCapsConfig `yaml:"risk"`
	Triggers    domain.TriggerSet     `yaml:"triggers"`
	Trend       domain.TrendConfig    `yaml:"trend"`
	Persistence PersistenceConfig     `yaml:"persistence"`
}

type ExchangeConfig struct {
	exchange.BybitConfig `yaml:",inline"`
	Paper                bool `yaml:"paper"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type LoggingConfig struct {
	Level    string          `yaml:"level"`
	File     string          `yaml:"file"`
	Rotation logger.Rotation `yaml:"rotation"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
	Workers  int           `yaml:"workers"`
}

type AccountConfig struct {
	ID      string          `yaml:"id"`
	Balance decimal.Decimal `yaml:"balance"`
}

// ChainSection is the chain template. A zero base_lot means the risk tier
// decides the base lot.
type ChainSection struct {
	domain.ChainConfig `yaml:",inline"`
	BaseLot            decimal.Decimal `yaml:"base_lot"`
}

type PersistenceConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = storage.DriverSQLite
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "reentry.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	def := usecase.DefaultMonitorConfig()
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = def.Interval
	}
	if c.Monitor.Workers == 0 {
		c.Monitor.Workers = def.Workers
	}
	if c.Account.ID == "" {
		c.Account.ID = "default"
	}
	if c.Sizing.RewardRatio.IsZero() {
		c.Sizing.RewardRatio = decimal.RequireFromString("1.5")
	}
	if c.Sizing.LotStep.IsZero() {
		c.Sizing.LotStep = decimal.RequireFromString("0.01")
	}
	if c.Trend.Timeframe == "" {
		c.Trend.Timeframe = "60"
	}
	reg := usecase.DefaultRegistryConfig()
	if c.Persistence.Attempts == 0 {
		c.Persistence.Attempts = reg.PersistAttempts
	}
	if c.Persistence.Backoff == 0 {
		c.Persistence.Backoff = reg.PersistBackoff
	}
}

func (c *Config) Validate() error {
	if c.Storage.Driver != storage.DriverSQLite && c.Storage.Driver != storage.DriverBadger {
		return fmt.Errorf("storage: unknown driver %q: %w", c.Storage.Driver, domain.ErrConfiguration)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d: %w", c.Server.Port, domain.ErrConfiguration)
	}
	if c.Monitor.Interval < 0 || c.Monitor.Workers < 0 {
		return fmt.Errorf("monitor: interval and workers must be positive: %w", domain.ErrConfiguration)
	}
	if c.Account.Balance.IsNegative() {
		return fmt.Errorf("account: balance must be >= 0: %w", domain.ErrConfiguration)
	}
	if c.Persistence.Attempts < 1 {
		return fmt.Errorf("persistence: attempts must be >= 1: %w", domain.ErrConfiguration)
	}
	if !c.Exchange.Paper && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("exchange: api_key and api_secret are required unless paper is set: %w", domain.ErrConfiguration)
	}
	if err := c.ChainConfig().Validate(); err != nil {
		return err
	}
	if err := c.Sizing.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Triggers.Validate(); err != nil {
		return err
	}
	return c.Trend.Validate()
}

// ChainConfig returns the chain template with the base lot override applied.
func (c *Config) ChainConfig() domain.ChainConfig {
	out := c.Chain.ChainConfig
	if !c.Chain.BaseLot.IsZero() {
		out.BaseLot = decimal.NewNullDecimal(c.Chain.BaseLot)
	}
	return out
}

func (c *Config) MonitorConfig() usecase.MonitorConfig {
	return usecase.MonitorConfig{Interval: c.Monitor.Interval, Workers: c.Monitor.Workers}
}

func (c *Config) RegistryConfig() usecase.RegistryConfig {
	return usecase.RegistryConfig{PersistAttempts: c.Persistence.Attempts, PersistBackoff: c.Persistence.Backoff}
}
