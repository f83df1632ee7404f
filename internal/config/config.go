package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pagepulse/pagepulse/internal/monitor"
)

// EnvPrefix is prepended to every environment override, e.g. PAGEPULSE_HTTP_ADDR
const EnvPrefix = "PAGEPULSE"

// Config is the server configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Retention RetentionConfig `mapstructure:"retention"`
	Log       LogConfig       `mapstructure:"log"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// NATSConfig leaves URL empty to run without a broker
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type MonitorConfig struct {
	Enabled            bool               `mapstructure:"enabled"`
	Interval           time.Duration      `mapstructure:"interval"`
	Cooldown           time.Duration      `mapstructure:"cooldown"`
	Thresholds         monitor.Thresholds `mapstructure:"thresholds"`
	WarningMultiplier  float64            `mapstructure:"warning_multiplier"`
	CriticalMultiplier float64            `mapstructure:"critical_multiplier"`
	// Webhook is optional; alerts are posted to it when URL is set
	Webhook monitor.WebhookConfig `mapstructure:"webhook"`
}

// EffectiveThresholds merges the multipliers into the threshold set
func (m MonitorConfig) EffectiveThresholds() monitor.Thresholds {
	t := m.Thresholds
	t.WarningMultiplier = m.WarningMultiplier
	t.CriticalMultiplier = m.CriticalMultiplier
	return t
}

// SamplerConfig controls host resource sampling. A zero interval disables it.
type SamplerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type RetentionConfig struct {
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	th := monitor.DefaultThresholds()

	v.SetDefault("app.name", "pagepulse")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.path", "pagepulse.db")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.max_reconnects", 60)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", 5*time.Minute)
	v.SetDefault("monitor.cooldown", monitor.DefaultCooldown)
	v.SetDefault("monitor.thresholds.page_load_time", th.PageLoadTime)
	v.SetDefault("monitor.thresholds.first_contentful_paint", th.FirstContentfulPaint)
	v.SetDefault("monitor.thresholds.largest_contentful_paint", th.LargestContentfulPaint)
	v.SetDefault("monitor.thresholds.cumulative_layout_shift", th.CumulativeLayoutShift)
	v.SetDefault("monitor.thresholds.first_input_delay", th.FirstInputDelay)
	v.SetDefault("monitor.thresholds.api_response_time", th.APIResponseTime)
	v.SetDefault("monitor.thresholds.query_time", th.QueryTime)
	v.SetDefault("monitor.thresholds.cache_hit_rate", th.CacheHitRate)
	v.SetDefault("monitor.thresholds.memory_usage", th.MemoryUsage)
	v.SetDefault("monitor.warning_multiplier", th.WarningMultiplier)
	v.SetDefault("monitor.critical_multiplier", th.CriticalMultiplier)
	v.SetDefault("monitor.webhook.url", "")
	v.SetDefault("monitor.webhook.headers", map[string]string{})
	v.SetDefault("monitor.webhook.timeout", 10*time.Second)
	v.SetDefault("sampler.interval", time.Minute)
	v.SetDefault("retention.schedule", "@daily")
	v.SetDefault("retention.max_age", 30*24*time.Hour)
	v.SetDefault("log.development", false)
}

// Load reads configuration from path, or from config/config.yaml when path is
// empty, then applies a .env file and PAGEPULSE_* environment overrides.
// A missing default config file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Monitor.Cooldown < 0 {
		return fmt.Errorf("monitor.cooldown must not be negative, got %s", c.Monitor.Cooldown)
	}
	if err := c.Monitor.EffectiveThresholds().Validate(); err != nil {
		return fmt.Errorf("monitor thresholds: %w", err)
	}
	if c.Sampler.Interval < 0 {
		return fmt.Errorf("sampler.interval must not be negative, got %s", c.Sampler.Interval)
	}
	if c.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention.max_age must be positive, got %s", c.Retention.MaxAge)
	}
	if c.Retention.Schedule == "" {
		return errors.New("retention.schedule is required")
	}
	return nil
}
