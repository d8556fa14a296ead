package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.App.ClientID)
	assert.Equal(t, time.Duration(0), cfg.App.ClockOffset)
	assert.Equal(t, "127.0.0.1", cfg.Decoder.Host)
	assert.Equal(t, 4001, cfg.Decoder.Port)
	assert.Equal(t, 10*time.Second, cfg.Decoder.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.Decoder.ReconnectDelay)
	assert.Equal(t, 1048576, cfg.Reader.BufferLimit)
	assert.Equal(t, time.Second, cfg.Reader.FlushInterval)
	assert.Equal(t, 5*time.Second, cfg.Correlation.Interval)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Interval)
	assert.Equal(t, 5*time.Second, cfg.Delivery.RetryDelay)
	assert.Equal(t, 100, cfg.Delivery.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Status.Interval)
	assert.Equal(t, 5*time.Second, cfg.TimeSync.Threshold)
	assert.Equal(t, "127.0.0.1", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "aerolink", cfg.Database.User)
	assert.Equal(t, "aerolink", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "migrations", cfg.Database.Migrations)
	assert.Equal(t, 9180, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
app:
  client_id: 42
decoder:
  host: decoder.local
  port: 4010
delivery:
  url: https://ops.example.com/api/beacons
  batch_size: 25
  secret_key: s3cret
  bearer_token: tok
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.App.ClientID)
	assert.Equal(t, "decoder.local", cfg.Decoder.Host)
	assert.Equal(t, 4010, cfg.Decoder.Port)
	assert.Equal(t, "https://ops.example.com/api/beacons", cfg.Delivery.URL)
	assert.Equal(t, 25, cfg.Delivery.BatchSize)
	assert.Equal(t, "s3cret", cfg.Delivery.SecretKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	// Keys the file does not mention keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Decoder.ReconnectDelay)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Interval)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("AEROLINK_APP_CLIENT_ID", "7")
	t.Setenv("AEROLINK_DECODER_PORT", "4500")
	t.Setenv("AEROLINK_DELIVERY_RETRY_DELAY", "2s")
	t.Setenv("AEROLINK_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.App.ClientID)
	assert.Equal(t, 4500, cfg.Decoder.Port)
	assert.Equal(t, 2*time.Second, cfg.Delivery.RetryDelay)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("decoder: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func validConfig() *Config {
	cfg, _ := Load("")
	cfg.App.ClientID = 1
	cfg.Delivery.URL = "https://ops.example.com/api/beacons"
	cfg.Delivery.SecretKey = "secret"
	cfg.Delivery.BearerToken = "token"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.App.ClientID = 0 },
			wantErr: "client_id",
		},
		{
			name:    "empty decoder host",
			mutate:  func(c *Config) { c.Decoder.Host = "" },
			wantErr: "decoder.host",
		},
		{
			name:    "decoder port out of range",
			mutate:  func(c *Config) { c.Decoder.Port = 70000 },
			wantErr: "decoder.port",
		},
		{
			name:    "zero buffer limit",
			mutate:  func(c *Config) { c.Reader.BufferLimit = 0 },
			wantErr: "buffer_limit",
		},
		{
			name:    "missing delivery url",
			mutate:  func(c *Config) { c.Delivery.URL = "" },
			wantErr: "delivery.url",
		},
		{
			name:    "missing secret key",
			mutate:  func(c *Config) { c.Delivery.SecretKey = "" },
			wantErr: "secret_key",
		},
		{
			name:    "missing bearer token",
			mutate:  func(c *Config) { c.Delivery.BearerToken = "" },
			wantErr: "bearer_token",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Delivery.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "retry delay not shorter than interval",
			mutate:  func(c *Config) { c.Delivery.RetryDelay = c.Delivery.Interval },
			wantErr: "retry_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.local",
		Port:     5433,
		User:     "agent",
		Password: "pw",
		Database: "beacons",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://agent:pw@db.local:5433/beacons?sslmode=require", d.URL())
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4001, cfg.Decoder.Port)
	assert.Equal(t, 100, cfg.Delivery.BatchSize)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Second write must refuse to clobber.
	err = WriteDefault(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}
