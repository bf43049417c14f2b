package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Environment string         `yaml:"environment"`
	Store       StoreConfig    `yaml:"store"`
	Redis       RedisConfig    `yaml:"redis"`
	Vendors     VendorsConfig  `yaml:"vendors"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Alerts      AlertsConfig   `yaml:"alerts"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
}

// StoreConfig describes the relational store connection.
type StoreConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN builds a postgres connection string from the store config.
func (s StoreConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Database, s.SSLMode)
}

// RedisConfig represents the Redis connection used for in-session credit accounting.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Address returns the host:port Redis dial target.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// VendorsConfig configures the primary and secondary OHLCV vendor backends.
type VendorsConfig struct {
	Primary   VendorConfig `yaml:"primary"`
	Secondary VendorConfig `yaml:"secondary"`
}

// VendorConfig is the per-vendor HTTP and credit-accounting configuration.
type VendorConfig struct {
	Name           string        `yaml:"name"`
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CreditsPerCall int           `yaml:"credits_per_call"`
	PageSize       int           `yaml:"page_size"`
	PageDelay      time.Duration `yaml:"page_delay"`
	Keys           []VendorKey   `yaml:"keys"`
}

// VendorKey is one API key in a vendor's rotation pool.
type VendorKey struct {
	Label           string `yaml:"label"`
	APIKey          string `yaml:"api_key"`
	DefaultCredits  int    `yaml:"default_credits"`
	ResetIntervalHr int    `yaml:"reset_interval_hours"`
}

// SchedulerConfig tunes the periodic tick and worker pool.
type SchedulerConfig struct {
	TickIntervalSeconds    int `yaml:"tick_interval_seconds"`
	FetchBufferSeconds     int `yaml:"fetch_buffer_seconds"`
	WorkerPoolSize         int `yaml:"worker_pool_size"`
	TickTimeoutSeconds     int `yaml:"tick_timeout_seconds"`
	CredentialResetHours   int `yaml:"credential_reset_hours"`
	PersistenceMaxRetries  int `yaml:"persistence_max_retries"`
	PersistenceBackoffSecs int `yaml:"persistence_backoff_seconds"`
}

// TickInterval returns the configured scheduler tick as a time.Duration.
func (s SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalSeconds) * time.Second
}

// AlertsConfig holds the alert-engine thresholds enumerated in the spec.
type AlertsConfig struct {
	TouchThresholdSeconds     int `yaml:"touch_threshold_seconds"`
	OversoldK                 int `yaml:"oversold_k"`
	OversoldD                 int `yaml:"oversold_d"`
	OverboughtK               int `yaml:"overbought_k"`
	OverboughtD               int `yaml:"overbought_d"`
	MaxBandTouchNotifications int `yaml:"max_band_touch_notifications"`
}

// MonitoringConfig configures the Prometheus/health endpoint.
type MonitoringConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	ListenAddress  string `yaml:"listen_address"`
}

// Timeframes is the fixed set of timeframes the core handles; order matters
// (ascending) since the aggregator folds 15m into 1h into 4h.
var Timeframes = []string{"15m", "1h", "4h"}

// EMAPeriods is the fixed set of EMA periods the engine tracks.
var EMAPeriods = []int{12, 21, 34}

// TimeframeSeconds returns the bar width in seconds for a known timeframe.
// Timeframes outside the {15m,1h,4h} whitelist return 0, false.
func TimeframeSeconds(timeframe string) (int64, bool) {
	switch timeframe {
	case "15m":
		return 15 * 60, true
	case "1h":
		return 60 * 60, true
	case "4h":
		return 4 * 60 * 60, true
	default:
		return 0, false
	}
}

// applyDefaults fills zero-valued fields with the defaults enumerated in the spec.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.Store.SSLMode == "" {
		c.Store.SSLMode = "disable"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Scheduler.TickIntervalSeconds == 0 {
		c.Scheduler.TickIntervalSeconds = 300
	}
	if c.Scheduler.FetchBufferSeconds == 0 {
		c.Scheduler.FetchBufferSeconds = 300
	}
	if c.Scheduler.WorkerPoolSize == 0 {
		c.Scheduler.WorkerPoolSize = 4
	}
	if c.Scheduler.TickTimeoutSeconds == 0 {
		c.Scheduler.TickTimeoutSeconds = 600
	}
	if c.Scheduler.CredentialResetHours == 0 {
		c.Scheduler.CredentialResetHours = 12
	}
	if c.Scheduler.PersistenceMaxRetries == 0 {
		c.Scheduler.PersistenceMaxRetries = 3
	}
	if c.Scheduler.PersistenceBackoffSecs == 0 {
		c.Scheduler.PersistenceBackoffSecs = 60
	}
	if c.Alerts.TouchThresholdSeconds == 0 {
		c.Alerts.TouchThresholdSeconds = 7200
	}
	if c.Alerts.OversoldK == 0 {
		c.Alerts.OversoldK = 20
	}
	if c.Alerts.OversoldD == 0 {
		c.Alerts.OversoldD = 20
	}
	if c.Alerts.OverboughtK == 0 {
		c.Alerts.OverboughtK = 80
	}
	if c.Alerts.OverboughtD == 0 {
		c.Alerts.OverboughtD = 80
	}
	if c.Alerts.MaxBandTouchNotifications == 0 {
		c.Alerts.MaxBandTouchNotifications = 2
	}
	if c.Monitoring.ListenAddress == "" {
		c.Monitoring.ListenAddress = ":9090"
	}
	for i := range c.Vendors.Primary.Keys {
		if c.Vendors.Primary.Keys[i].DefaultCredits == 0 {
			c.Vendors.Primary.Keys[i].DefaultCredits = defaultKeyCredits
		}
		if c.Vendors.Primary.Keys[i].ResetIntervalHr == 0 {
			c.Vendors.Primary.Keys[i].ResetIntervalHr = c.Scheduler.CredentialResetHours
		}
	}
	for i := range c.Vendors.Secondary.Keys {
		if c.Vendors.Secondary.Keys[i].DefaultCredits == 0 {
			c.Vendors.Secondary.Keys[i].DefaultCredits = defaultKeyCredits
		}
		if c.Vendors.Secondary.Keys[i].ResetIntervalHr == 0 {
			c.Vendors.Secondary.Keys[i].ResetIntervalHr = c.Scheduler.CredentialResetHours
		}
	}
}

// defaultKeyCredits is the fallback per-key credit allotment when an operator
// omits default_credits from a vendor key entry.
const defaultKeyCredits = 1000

// Validate checks required fields and internally-consistent ranges.
func (c *Config) Validate() error {
	if c.Store.Database == "" {
		return fmt.Errorf("config: store.database is required")
	}
	if c.Vendors.Primary.BaseURL == "" {
		return fmt.Errorf("config: vendors.primary.base_url is required")
	}
	if c.Vendors.Secondary.BaseURL == "" {
		return fmt.Errorf("config: vendors.secondary.base_url is required")
	}
	if len(c.Vendors.Primary.Keys) == 0 {
		return fmt.Errorf("config: vendors.primary must configure at least one key")
	}
	if len(c.Vendors.Secondary.Keys) == 0 {
		return fmt.Errorf("config: vendors.secondary must configure at least one key")
	}
	return nil
}
