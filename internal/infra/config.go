package infra

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"market_voice/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SymbolConfig is the per-pair block under watch_symbols.
type SymbolConfig struct {
	Digits int    `yaml:"digits"`
	JPName string `yaml:"jp_name"`
}

// Config holds every application setting. Loaded from YAML, then
// overridden by environment variables, then validated.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		BridgeURL          string  `yaml:"bridge_url"`
		UpdateIntervalSec  float64 `yaml:"update_interval_sec"`
		RecoverIntervalSec float64 `yaml:"recover_interval_sec"`
		RequestTimeoutSec  float64 `yaml:"request_timeout_sec"`
	} `yaml:"feed"`

	WatchSymbols map[string]SymbolConfig `yaml:"watch_symbols"`

	Movement struct {
		SmallThreshold  float64 `yaml:"small_threshold"`
		MediumThreshold float64 `yaml:"medium_threshold"`
		LargeThreshold  float64 `yaml:"large_threshold"`
		MsgSmall        string  `yaml:"msg_small"`
		MsgMedium       string  `yaml:"msg_medium"`
		MsgLarge        string  `yaml:"msg_large"`
	} `yaml:"movement"`

	Speech struct {
		IntervalSec float64 `yaml:"interval_sec"`
	} `yaml:"speech"`

	Server struct {
		WSHost        string `yaml:"ws_host"`
		WSPort        int    `yaml:"ws_port"`
		DashboardPort int    `yaml:"dashboard_port"`
		HTTPPort      int    `yaml:"http_port"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigNotFound, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills unset fields with the stock settings.
func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "market_voice"
	}
	if c.Feed.UpdateIntervalSec <= 0 {
		c.Feed.UpdateIntervalSec = 2.0
	}
	if c.Feed.RecoverIntervalSec <= 0 {
		c.Feed.RecoverIntervalSec = 5.0
	}
	if c.Feed.RequestTimeoutSec <= 0 {
		c.Feed.RequestTimeoutSec = 10.0
	}
	if c.Movement.SmallThreshold <= 0 {
		c.Movement.SmallThreshold = 5.0
	}
	if c.Movement.MediumThreshold <= 0 {
		c.Movement.MediumThreshold = 16.0
	}
	if c.Movement.LargeThreshold <= 0 {
		c.Movement.LargeThreshold = 30.0
	}
	if c.Movement.MsgSmall == "" {
		c.Movement.MsgSmall = "📊 すこしうごきがあったぞ"
	}
	if c.Movement.MsgMedium == "" {
		c.Movement.MsgMedium = "⚠️ ちゅうくらいのうごきがあったぞ"
	}
	if c.Movement.MsgLarge == "" {
		c.Movement.MsgLarge = "🚨 おい！なんかあったぞ"
	}
	if c.Speech.IntervalSec <= 0 {
		c.Speech.IntervalSec = 7.0
	}
	if c.Server.WSHost == "" {
		c.Server.WSHost = "0.0.0.0"
	}
	if c.Server.WSPort == 0 {
		c.Server.WSPort = 8000
	}
	if c.Server.DashboardPort == 0 {
		c.Server.DashboardPort = c.Server.WSPort + 1
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Feed.BridgeURL == "" || (!strings.HasPrefix(c.Feed.BridgeURL, "http://") && !strings.HasPrefix(c.Feed.BridgeURL, "https://")) {
		return &domain.ConfigError{Field: "feed.bridge_url", Err: fmt.Errorf("invalid bridge URL: %s", c.Feed.BridgeURL)}
	}
	if len(c.WatchSymbols) == 0 {
		return &domain.ConfigError{Field: "watch_symbols", Err: fmt.Errorf("at least one watch symbol is required")}
	}
	for symbol, sc := range c.WatchSymbols {
		if sc.Digits < 1 || sc.Digits > 8 {
			return &domain.ConfigError{Field: "watch_symbols." + symbol, Err: fmt.Errorf("digits out of range: %d", sc.Digits)}
		}
	}
	if !(c.Movement.SmallThreshold < c.Movement.MediumThreshold && c.Movement.MediumThreshold < c.Movement.LargeThreshold) {
		return &domain.ConfigError{Field: "movement", Err: fmt.Errorf("thresholds must be strictly ascending: %v < %v < %v",
			c.Movement.SmallThreshold, c.Movement.MediumThreshold, c.Movement.LargeThreshold)}
	}
	if c.Server.WSPort == c.Server.DashboardPort {
		return &domain.ConfigError{Field: "server", Err: fmt.Errorf("speaker and dashboard ports must differ")}
	}
	return nil
}

// SymbolSpecs returns the watched pairs in stable (sorted) order.
func (c *Config) SymbolSpecs() []domain.SymbolSpec {
	symbols := make([]string, 0, len(c.WatchSymbols))
	for s := range c.WatchSymbols {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	specs := make([]domain.SymbolSpec, 0, len(symbols))
	for _, s := range symbols {
		sc := c.WatchSymbols[s]
		specs = append(specs, domain.SymbolSpec{
			Symbol: s,
			Digits: sc.Digits,
			JPName: sc.JPName,
		})
	}
	return specs
}

// Thresholds returns the movement thresholds as decimals.
func (c *Config) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		Small:  decimal.NewFromFloat(c.Movement.SmallThreshold),
		Medium: decimal.NewFromFloat(c.Movement.MediumThreshold),
		Large:  decimal.NewFromFloat(c.Movement.LargeThreshold),
	}
}

// SeverityMessage returns the spoken suffix for a severity bucket.
func (c *Config) SeverityMessage(sev domain.Severity) string {
	switch sev {
	case domain.SeverityLarge:
		return c.Movement.MsgLarge
	case domain.SeverityMedium:
		return c.Movement.MsgMedium
	default:
		return c.Movement.MsgSmall
	}
}

// UpdateInterval returns the polling interval.
func (c *Config) UpdateInterval() time.Duration {
	return secToDuration(c.Feed.UpdateIntervalSec)
}

// RecoverInterval returns the pause after a polling failure.
func (c *Config) RecoverInterval() time.Duration {
	return secToDuration(c.Feed.RecoverIntervalSec)
}

// RequestTimeout returns the bridge HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return secToDuration(c.Feed.RequestTimeoutSec)
}

// SpeechCooldown returns the gap enforced between deliveries.
func (c *Config) SpeechCooldown() time.Duration {
	return secToDuration(c.Speech.IntervalSec)
}

func secToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("MV_BRIDGE_URL"); url != "" {
		cfg.Feed.BridgeURL = url
	}
	if host := os.Getenv("MV_WS_HOST"); host != "" {
		cfg.Server.WSHost = host
	}
	if level := os.Getenv("MV_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
