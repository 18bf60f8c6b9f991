// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Detector() DetectorConfig
	AutoSend() AutoSendConfig
	Store() StoreConfig
	Notify() NotifyConfig
	Buttons() []schemas.Prompt

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserRemoteURL(string)

	// Store Setters
	SetStoreDriver(string)
	SetStorePath(string)

	// Detector Setters
	SetHeuristics(schemas.HeuristicSettings)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	DetectorCfg DetectorConfig   `mapstructure:"detector" yaml:"detector"`
	AutoSendCfg AutoSendConfig   `mapstructure:"autosend" yaml:"autosend"`
	StoreCfg    StoreConfig      `mapstructure:"store" yaml:"store"`
	NotifyCfg   NotifyConfig     `mapstructure:"notify" yaml:"notify"`
	ButtonsCfg  []schemas.Prompt `mapstructure:"buttons" yaml:"buttons"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Detector() DetectorConfig { return c.DetectorCfg }
func (c *Config) AutoSend() AutoSendConfig { return c.AutoSendCfg }
func (c *Config) Store() StoreConfig       { return c.StoreCfg }
func (c *Config) Notify() NotifyConfig     { return c.NotifyCfg }
func (c *Config) Buttons() []schemas.Prompt {
	return append([]schemas.Prompt(nil), c.ButtonsCfg...)
}

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)    { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserRemoteURL(u string) { c.BrowserCfg.RemoteURL = u }
func (c *Config) SetStoreDriver(d string)      { c.StoreCfg.Driver = d }
func (c *Config) SetStorePath(p string)        { c.StoreCfg.Path = p }
func (c *Config) SetHeuristics(h schemas.HeuristicSettings) {
	c.DetectorCfg.EnableEditorHeuristics = h.EnableEditorHeuristics
	c.DetectorCfg.EnableSendButtonHeuristics = h.EnableSendButtonHeuristics
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how Chrome is launched or attached to.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// RemoteURL attaches to a running Chrome (ws://... or http://host:9222) instead of launching one.
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// DetectorConfig tunes failure tracking and heuristic recovery.
type DetectorConfig struct {
	Cooldown                   time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	FailureThreshold           int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SettleDelay                time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	OfferWindow                time.Duration `mapstructure:"offer_window" yaml:"offer_window"`
	EnableEditorHeuristics     bool          `mapstructure:"enable_editor_heuristics" yaml:"enable_editor_heuristics"`
	EnableSendButtonHeuristics bool          `mapstructure:"enable_send_button_heuristics" yaml:"enable_send_button_heuristics"`
}

// Heuristics extracts the heuristic toggles.
func (d DetectorConfig) Heuristics() schemas.HeuristicSettings {
	return schemas.HeuristicSettings{
		EnableEditorHeuristics:     d.EnableEditorHeuristics,
		EnableSendButtonHeuristics: d.EnableSendButtonHeuristics,
	}
}

// AutoSendConfig tunes the auto-send state machine.
type AutoSendConfig struct {
	Interval         time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxAttempts      int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	StopPollInterval time.Duration `mapstructure:"stop_poll_interval" yaml:"stop_poll_interval"`
	StopCeiling      time.Duration `mapstructure:"stop_ceiling" yaml:"stop_ceiling"`
	PostStopInterval time.Duration `mapstructure:"post_stop_interval" yaml:"post_stop_interval"`
	PostStopAttempts int           `mapstructure:"post_stop_attempts" yaml:"post_stop_attempts"`
	// LateFallbackAfter is the post-stop attempt from which an enabled button
	// is clicked even though pre-click validation keeps failing.
	LateFallbackAfter int `mapstructure:"late_fallback_after" yaml:"late_fallback_after"`
}

// StoreConfig selects the custom selector repository.
type StoreConfig struct {
	Driver       string `mapstructure:"driver" yaml:"driver"`
	Path         string `mapstructure:"path" yaml:"path"`
	PostgresDSN  string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	EnsureSchema bool   `mapstructure:"ensure_schema" yaml:"ensure_schema"`
}

// NotifyConfig controls toast delivery.
type NotifyConfig struct {
	// RatePerSecond and Burst bound the toast rate; 0 disables throttling.
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int           `mapstructure:"burst" yaml:"burst"`
	DedupWindow   time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
	PageToasts    bool          `mapstructure:"page_toasts" yaml:"page_toasts"`
	ToastDuration time.Duration `mapstructure:"toast_duration" yaml:"toast_duration"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chatpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.window_width", 1400)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.debug", false)

	// -- Detector --
	v.SetDefault("detector.cooldown", "2s")
	v.SetDefault("detector.failure_threshold", 1)
	v.SetDefault("detector.settle_delay", "400ms")
	v.SetDefault("detector.offer_window", "15s")
	v.SetDefault("detector.enable_editor_heuristics", true)
	v.SetDefault("detector.enable_send_button_heuristics", true)

	// -- Auto Send --
	v.SetDefault("autosend.interval", "200ms")
	v.SetDefault("autosend.max_attempts", 30)
	v.SetDefault("autosend.stop_poll_interval", "300ms")
	v.SetDefault("autosend.stop_ceiling", "5m")
	v.SetDefault("autosend.post_stop_interval", "150ms")
	v.SetDefault("autosend.post_stop_attempts", 25)
	v.SetDefault("autosend.late_fallback_after", 15)

	// -- Store --
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "~/.chatpilot/selectors.json")
	v.SetDefault("store.ensure_schema", false)

	// -- Notify --
	v.SetDefault("notify.rate_per_second", 2.0)
	v.SetDefault("notify.burst", 4)
	v.SetDefault("notify.dedup_window", "3s")
	v.SetDefault("notify.page_toasts", true)
	v.SetDefault("notify.toast_duration", "4s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("store.postgres_dsn", "CHATPILOT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.DetectorCfg.Validate(); err != nil {
		return fmt.Errorf("detector configuration invalid: %w", err)
	}
	if err := c.AutoSendCfg.Validate(); err != nil {
		return fmt.Errorf("autosend configuration invalid: %w", err)
	}
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if c.NotifyCfg.RatePerSecond < 0 || c.NotifyCfg.Burst < 0 {
		return fmt.Errorf("notify.rate_per_second and notify.burst must not be negative")
	}
	for i, b := range c.ButtonsCfg {
		if b.Name == "" || b.Text == "" {
			return fmt.Errorf("buttons[%d] requires both name and text", i)
		}
	}
	return nil
}

// Validate checks the DetectorConfig settings.
func (d *DetectorConfig) Validate() error {
	if d.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1")
	}
	if d.Cooldown < 0 || d.SettleDelay < 0 || d.OfferWindow < 0 {
		return fmt.Errorf("cooldown, settle_delay and offer_window must not be negative")
	}
	return nil
}

// Validate checks the AutoSendConfig settings.
func (a *AutoSendConfig) Validate() error {
	if a.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if a.Interval <= 0 || a.StopPollInterval <= 0 || a.PostStopInterval <= 0 {
		return fmt.Errorf("interval, stop_poll_interval and post_stop_interval must be positive durations")
	}
	if a.StopCeiling <= 0 {
		return fmt.Errorf("stop_ceiling must be a positive duration")
	}
	if a.PostStopAttempts < 0 {
		return fmt.Errorf("post_stop_attempts must not be negative")
	}
	return nil
}

// Validate checks the StoreConfig settings.
func (s *StoreConfig) Validate() error {
	switch s.Driver {
	case "", "file":
		return nil
	case "postgres":
		if s.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for the postgres driver. Set it or CHATPILOT_DATABASE_URL")
		}
		return nil
	default:
		return fmt.Errorf("unknown driver %q (want file or postgres)", s.Driver)
	}
}
