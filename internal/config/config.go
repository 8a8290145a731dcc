package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	Env       string `mapstructure:"app_env"`
	LogLevel  string `mapstructure:"log_level"`
	LogOutput string `mapstructure:"log_output"`

	DogAPIBaseURL string `mapstructure:"dog_api_base_url"`
	UserAgent     string `mapstructure:"user_agent"`

	PublishersFile     string        `mapstructure:"publishers_file"`
	SinkBuffer         int           `mapstructure:"sink_buffer"`
	SinkTimeoutSeconds int64         `mapstructure:"sink_timeout_seconds"`
	SinkTimeout        time.Duration `mapstructure:"-"`

	APIAddr string `mapstructure:"api_addr"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "randombark")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_output", "stdout")
	v.SetDefault("dog_api_base_url", "https://dog.ceo")
	v.SetDefault("user_agent", "randombark/1.0")
	v.SetDefault("publishers_file", "")
	v.SetDefault("sink_buffer", 64)
	v.SetDefault("sink_timeout_seconds", 10)
	v.SetDefault("api_addr", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/seen.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize validates raw values and derives durations.
func (c *Config) normalize() error {
	c.DogAPIBaseURL = strings.TrimRight(strings.TrimSpace(c.DogAPIBaseURL), "/")
	u, err := url.Parse(c.DogAPIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid dog_api_base_url %q (must be an absolute URL)", c.DogAPIBaseURL)
	}

	if c.SinkBuffer <= 0 {
		return fmt.Errorf("invalid sink_buffer (must be positive)")
	}
	if c.SinkTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid sink_timeout_seconds (must be positive seconds)")
	}
	c.SinkTimeout = time.Duration(c.SinkTimeoutSeconds) * time.Second

	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	return nil
}
