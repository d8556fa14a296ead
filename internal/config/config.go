package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Decoder     DecoderConfig     `mapstructure:"decoder"`
	Reader      ReaderConfig      `mapstructure:"reader"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Delivery    DeliveryConfig    `mapstructure:"delivery"`
	Status      StatusConfig      `mapstructure:"status"`
	TimeSync    TimeSyncConfig    `mapstructure:"timesync"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type AppConfig struct {
	ClientID    int           `mapstructure:"client_id"`
	ClockOffset time.Duration `mapstructure:"clock_offset"`
}

type DecoderConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type ReaderConfig struct {
	BufferLimit   int           `mapstructure:"buffer_limit"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type CorrelationConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type DeliveryConfig struct {
	URL         string        `mapstructure:"url"`
	Interval    time.Duration `mapstructure:"interval"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	BatchSize   int           `mapstructure:"batch_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SecretKey   string        `mapstructure:"secret_key"`
	BearerToken string        `mapstructure:"bearer_token"`
}

type StatusConfig struct {
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval"`
}

type TimeSyncConfig struct {
	URL       string        `mapstructure:"url"`
	Interval  time.Duration `mapstructure:"interval"`
	Threshold time.Duration `mapstructure:"threshold"`
}

type DatabaseConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Database   string `mapstructure:"database"`
	SSLMode    string `mapstructure:"sslmode"`
	Migrations string `mapstructure:"migrations"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// defaults is the single source of truth for every configuration key.
func defaults() map[string]any {
	return map[string]any{
		"app.client_id":           0,
		"app.clock_offset":        "0s",
		"decoder.host":            "127.0.0.1",
		"decoder.port":            4001,
		"decoder.connect_timeout": "10s",
		"decoder.reconnect_delay": "5s",
		"reader.buffer_limit":     1048576,
		"reader.flush_interval":   "1s",
		"correlation.interval":    "5s",
		"delivery.url":            "",
		"delivery.interval":       "10s",
		"delivery.retry_delay":    "5s",
		"delivery.batch_size":     100,
		"delivery.timeout":        "10s",
		"delivery.secret_key":     "",
		"delivery.bearer_token":   "",
		"status.url":              "",
		"status.interval":         "30s",
		"timesync.url":            "",
		"timesync.interval":       "0s",
		"timesync.threshold":      "5s",
		"database.host":           "127.0.0.1",
		"database.port":           5432,
		"database.user":           "aerolink",
		"database.password":       "",
		"database.database":       "aerolink",
		"database.sslmode":        "disable",
		"database.migrations":     "migrations",
		"server.port":             9180,
		"server.read_timeout":     "10s",
		"server.write_timeout":    "10s",
		"server.idle_timeout":     "60s",
		"logging.level":           "info",
		"logging.format":          "json",
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/aerolink")
	}

	// Environment variables override
	v.SetEnvPrefix("AEROLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate enforces the settings without which the pipeline cannot run.
// Violations are startup-fatal; nothing here is recoverable by retry.
func (c *Config) Validate() error {
	if c.App.ClientID < 1 {
		return fmt.Errorf("app.client_id must be a positive integer")
	}
	if c.Decoder.Host == "" {
		return fmt.Errorf("decoder.host must be set")
	}
	if c.Decoder.Port < 1 || c.Decoder.Port > 65535 {
		return fmt.Errorf("decoder.port %d out of range", c.Decoder.Port)
	}
	if c.Reader.BufferLimit < 1 {
		return fmt.Errorf("reader.buffer_limit must be positive")
	}
	if c.Reader.FlushInterval <= 0 {
		return fmt.Errorf("reader.flush_interval must be positive")
	}
	if c.Correlation.Interval <= 0 {
		return fmt.Errorf("correlation.interval must be positive")
	}
	if c.Delivery.URL == "" {
		return fmt.Errorf("delivery.url must be set")
	}
	if c.Delivery.SecretKey == "" {
		return fmt.Errorf("delivery.secret_key must be set")
	}
	if c.Delivery.BearerToken == "" {
		return fmt.Errorf("delivery.bearer_token must be set")
	}
	if c.Delivery.BatchSize < 1 {
		return fmt.Errorf("delivery.batch_size must be positive")
	}
	if c.Delivery.RetryDelay >= c.Delivery.Interval {
		return fmt.Errorf("delivery.retry_delay must be shorter than delivery.interval")
	}
	return nil
}

// URL builds the PostgreSQL connection string.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// WriteDefault writes a reference config file with every key at its
// default value. Refuses to clobber an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config %s", path)
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	body, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}

	header := "# aerolink-agent reference configuration.\n" +
		"# Values shown are the defaults; AEROLINK_* environment variables override.\n\n"

	if err := os.WriteFile(path, append([]byte(header), body...), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
