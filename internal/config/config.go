package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full engine configuration
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Storage StorageConfig `mapstructure:"storage"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Checks  ChecksConfig  `mapstructure:"checks"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	History HistoryConfig `mapstructure:"history"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// EngineConfig selects the concurrency substrate and the reconcile cadence
type EngineConfig struct {
	// Runtime is "thread" (one unbounded goroutine per target) or "pool"
	// (bounded concurrent probes)
	Runtime           string        `mapstructure:"runtime"`
	PoolSize          int           `mapstructure:"pool_size"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type ChecksConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	TLSWarningDays int           `mapstructure:"tls_warning_days"`
}

type AlertsConfig struct {
	ThrottleWindow     time.Duration `mapstructure:"throttle_window"`
	EscalationInterval time.Duration `mapstructure:"escalation_interval"`
	DispatchTimeout    time.Duration `mapstructure:"dispatch_timeout"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type HistoryConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	// CleanupSchedule is a cron expression for the history sweep
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "upmon")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)

	v.SetDefault("storage.path", "upmon.db")

	v.SetDefault("engine.runtime", "thread")
	v.SetDefault("engine.pool_size", 16)
	v.SetDefault("engine.reconcile_interval", 5*time.Second)
	v.SetDefault("engine.shutdown_timeout", 30*time.Second)

	v.SetDefault("checks.timeout", 10*time.Second)
	v.SetDefault("checks.retry_attempts", 3)
	v.SetDefault("checks.retry_backoff", 3*time.Second)
	v.SetDefault("checks.tls_warning_days", 7)

	v.SetDefault("alerts.throttle_window", 30*time.Second)
	v.SetDefault("alerts.escalation_interval", 5*time.Minute)
	v.SetDefault("alerts.dispatch_timeout", 10*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.interval", 30*time.Second)

	v.SetDefault("history.retention", 30*24*time.Hour)
	v.SetDefault("history.cleanup_schedule", "0 3 * * *")
}

// Load reads config/config.yaml relative to the working directory and
// unmarshals it over the defaults. A missing file is fine: every setting
// has a default.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine.Runtime {
	case "thread", "pool":
	default:
		return fmt.Errorf("invalid engine runtime %q: must be thread or pool", c.Engine.Runtime)
	}
	if c.Engine.Runtime == "pool" && c.Engine.PoolSize < 1 {
		return fmt.Errorf("invalid pool size %d: must be at least 1", c.Engine.PoolSize)
	}
	if c.Checks.RetryAttempts < 1 {
		return fmt.Errorf("invalid retry attempts %d: must be at least 1", c.Checks.RetryAttempts)
	}
	return nil
}
