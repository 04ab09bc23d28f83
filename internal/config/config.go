// Package config provides configuration management for the trading server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Defaults applied by normalize() when the corresponding field is unset.
const (
	defaultInitialBalance       = 1000.0
	defaultConfidenceThreshold  = 80.0
	defaultMaxPositionSizePct   = 0.10
	defaultMaxConcurrentPos     = 2
	defaultLeverage             = 2
	defaultMaxStopLossPct       = 0.20
	defaultMonitorIntervalSecs  = 60
	defaultStateFilePath        = "paper-trading-state.json"
	defaultServerPort           = 8080
	defaultOracleMaxTokens      = 1024
	defaultQuoteCandleCount     = 50
)

// defaultAllowedBaseSymbols are the base symbols admission accepts when the
// allow-list is not configured.
var defaultAllowedBaseSymbols = []string{"BTC", "XAU", "XAG", "XPT"}

// defaultTimeframes is the multi-resolution ladder sent to the oracle.
var defaultTimeframes = []string{"1min", "5min", "15min", "1h", "4h", "1day"}

// Config represents the complete application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	PaperTrading PaperTradingConfig `yaml:"paper_trading"`
	Oracle       OracleConfig       `yaml:"oracle"`
	MarketData   MarketDataConfig   `yaml:"market_data"`
	Notifier     NotifierConfig     `yaml:"notifier"`
}

// ServerConfig defines the inbound HTTP settings.
type ServerConfig struct {
	Port int `yaml:"port"`
	// WebhookSecret, when set, must match the alert body's secret field.
	WebhookSecret string `yaml:"webhook_secret"`
	LogLevel      string `yaml:"log_level"` // debug | info | warn | error
}

// PaperTradingConfig defines the paper trading engine parameters.
type PaperTradingConfig struct {
	Enabled                bool     `yaml:"enabled"`
	InitialBalance         float64  `yaml:"initial_balance"`
	ConfidenceThreshold    float64  `yaml:"confidence_threshold"`
	MaxPositionSizePercent float64  `yaml:"max_position_size_percent"`
	MaxConcurrentPositions int      `yaml:"max_concurrent_positions"`
	Leverage               int      `yaml:"leverage"`
	MaxStopLossPercent     float64  `yaml:"max_stop_loss_percent"`
	MonitorIntervalSeconds int      `yaml:"monitor_interval_seconds"`
	StateFilePath          string   `yaml:"state_file_path"`
	AllowedBaseSymbols     []string `yaml:"allowed_base_symbols"`
}

// OracleConfig defines the LLM verdict oracle settings.
type OracleConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	APIKey    string `yaml:"api_key"`
}

// MarketDataConfig defines the quote vendor settings.
type MarketDataConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// Timeframes is the candle-resolution ladder requested per analysis.
	Timeframes []string `yaml:"timeframes"`
	// CandleCount is the number of candles requested per timeframe.
	CandleCount int `yaml:"candle_count"`
}

// NotifierConfig defines the outbound notification webhook. Optional.
type NotifierConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables so secrets can live outside the file.
	expanded := os.ExpandEnv(string(data))

	config := Default()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Default returns a configuration populated with every default value.
// The oracle and market-data credentials still need to be filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     defaultServerPort,
			LogLevel: "info",
		},
		PaperTrading: PaperTradingConfig{
			Enabled:                true,
			InitialBalance:         defaultInitialBalance,
			ConfidenceThreshold:    defaultConfidenceThreshold,
			MaxPositionSizePercent: defaultMaxPositionSizePct,
			MaxConcurrentPositions: defaultMaxConcurrentPos,
			Leverage:               defaultLeverage,
			MaxStopLossPercent:     defaultMaxStopLossPct,
			MonitorIntervalSeconds: defaultMonitorIntervalSecs,
			StateFilePath:          defaultStateFilePath,
		},
		Oracle: OracleConfig{
			MaxTokens: defaultOracleMaxTokens,
		},
		MarketData: MarketDataConfig{
			CandleCount: defaultQuoteCandleCount,
		},
	}
}

// normalize fills slice defaults that the zero value cannot express.
func (c *Config) normalize() {
	if len(c.PaperTrading.AllowedBaseSymbols) == 0 {
		c.PaperTrading.AllowedBaseSymbols = append([]string(nil), defaultAllowedBaseSymbols...)
	}
	if len(c.MarketData.Timeframes) == 0 {
		c.MarketData.Timeframes = append([]string(nil), defaultTimeframes...)
	}
	if c.MarketData.CandleCount <= 0 {
		c.MarketData.CandleCount = defaultQuoteCandleCount
	}
	if c.Oracle.MaxTokens <= 0 {
		c.Oracle.MaxTokens = defaultOracleMaxTokens
	}
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	switch c.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug|info|warn|error")
	}

	pt := c.PaperTrading
	if pt.InitialBalance <= 0 {
		return fmt.Errorf("paper_trading.initial_balance must be > 0")
	}
	if pt.ConfidenceThreshold < 0 || pt.ConfidenceThreshold > 100 {
		return fmt.Errorf("paper_trading.confidence_threshold must be between 0 and 100")
	}
	if pt.MaxPositionSizePercent <= 0 || pt.MaxPositionSizePercent > 1.0 {
		return fmt.Errorf("paper_trading.max_position_size_percent must be in (0, 1.0]")
	}
	if pt.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("paper_trading.max_concurrent_positions must be > 0")
	}
	if pt.Leverage < 1 {
		return fmt.Errorf("paper_trading.leverage must be >= 1")
	}
	if pt.MaxStopLossPercent <= 0 || pt.MaxStopLossPercent >= 1.0 {
		return fmt.Errorf("paper_trading.max_stop_loss_percent must be in (0, 1.0)")
	}
	if pt.MonitorIntervalSeconds <= 0 {
		return fmt.Errorf("paper_trading.monitor_interval_seconds must be > 0")
	}
	if strings.TrimSpace(pt.StateFilePath) == "" {
		return fmt.Errorf("paper_trading.state_file_path is required")
	}

	if c.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required")
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle.model is required")
	}
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle.api_key is required")
	}

	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market_data.base_url is required")
	}
	if c.MarketData.APIKey == "" {
		return fmt.Errorf("market_data.api_key is required")
	}
	if len(c.MarketData.Timeframes) == 0 {
		return fmt.Errorf("market_data.timeframes must not be empty")
	}

	return nil
}

// MonitorInterval returns the monitor tick cadence as a duration.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.PaperTrading.MonitorIntervalSeconds) * time.Second
}
